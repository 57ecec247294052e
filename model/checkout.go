package models

import "time"

// LineStatus tracks one cart entry through a checkout run.
type LineStatus string

const (
	LineStatusPending            LineStatus = "pending"
	LineStatusApplied            LineStatus = "applied"
	LineStatusFailed             LineStatus = "failed"
	LineStatusSkipped            LineStatus = "skipped"
	LineStatusCompensated        LineStatus = "compensated"
	LineStatusCompensationFailed LineStatus = "compensation_failed"
)

type CheckoutLine struct {
	ProductID     int64      `json:"product_id"`
	Name          string     `json:"name"`
	Quantity      int        `json:"quantity"`
	PreviousStock int        `json:"previous_stock"`
	NewStock      int        `json:"new_stock"`
	ImageAttached bool       `json:"image_attached"`
	Status        LineStatus `json:"status"`
	Error         string     `json:"error,omitempty"`
}

type CheckoutResult struct {
	ID          string         `json:"id"`
	Lines       []CheckoutLine `json:"lines"`
	Total       string         `json:"total"`
	Completed   bool           `json:"completed"`
	// CartCleared is set once the checked-out entries left the cart.
	CartCleared bool           `json:"cart_cleared"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

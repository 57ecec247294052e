package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Product is the backend's product record. The storefront never mutates it
// except through checkout stock writes.
type Product struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Brand            string  `json:"brand"`
	Category         string  `json:"category"`
	Price            float64 `json:"price"`
	StockQuantity    int     `json:"stockQuantity"`
	ProductAvailable bool    `json:"productAvailable"`
	ImageName        string  `json:"imageName,omitempty"`
	Description      string  `json:"description,omitempty"`
	ReleaseDate      *Date   `json:"releaseDate,omitempty"`
}

const dateOnly = "2006-01-02"

// Date is a release date as sent by the backend. Both bare dates and full
// timestamps are accepted and written back in the layout they arrived in.
type Date struct {
	time.Time
	layout string
}

// NewDate returns a date-only value.
func NewDate(year int, month time.Month, day int) *Date {
	return &Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), layout: dateOnly}
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("release date: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{dateOnly, time.RFC3339Nano, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			d.layout = layout
			return nil
		}
	}
	return fmt.Errorf("release date: unsupported format %q", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	layout := d.layout
	if layout == "" {
		layout = time.RFC3339
	}
	return json.Marshal(d.Format(layout))
}

// Image is a product picture fetched from the backend.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	models "storefront/model"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock is returned when a cart quantity exceeds the live stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

type CheckoutBackend interface {
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	UpdateProduct(ctx context.Context, p models.Product, img *models.Image) error
}

// LineImages supplies the image attached to a line's update, by product id.
type LineImages interface {
	Image(ctx context.Context, id int64) (models.Image, error)
}

// Checkout writes the stock decrement of every cart line to the backend,
// one request at a time. The backend has no batch endpoint, so a failure
// part way through is undone by writing back the stock of the lines that
// were already applied.
type Checkout struct {
	backend CheckoutBackend
	images  LineImages
	state   *State
	log     *slog.Logger
	now     func() time.Time
}

func NewCheckout(backend CheckoutBackend, images LineImages, state *State, log *slog.Logger) *Checkout {
	if log == nil {
		log = slog.Default()
	}
	return &Checkout{
		backend: backend,
		images:  images,
		state:   state,
		log:     log.With("component", "checkout"),
		now:     time.Now,
	}
}

type appliedLine struct {
	idx      int
	previous models.Product
	image    *models.Image
}

// notInCatalog is the line error for cart entries hidden from the cart view.
const notInCatalog = "not in catalog"

// Submit runs a checkout over the cart entries still in the catalog, the
// same set the cart view shows. Entries whose product left the catalog are
// reported as skipped. Only when every line was applied are the checked-out
// quantities and the skipped entries taken off the cart. The returned result
// is filled in even when an error is returned.
func (c *Checkout) Submit(ctx context.Context) (models.CheckoutResult, error) {
	live, stale := c.state.SplitCart()
	res := models.CheckoutResult{
		ID:        uuid.NewString(),
		StartedAt: c.now(),
		Total:     Summarize(live).Total,
	}
	if len(live) == 0 {
		res.FinishedAt = c.now()
		return res, ErrEmptyCart
	}
	log := c.log.With(slog.String("checkout_id", res.ID))

	res.Lines = make([]models.CheckoutLine, 0, len(live)+len(stale))
	for _, e := range live {
		res.Lines = append(res.Lines, models.CheckoutLine{
			ProductID: e.ID,
			Name:      e.Name,
			Quantity:  e.Quantity,
			Status:    models.LineStatusPending,
		})
	}
	for _, e := range stale {
		res.Lines = append(res.Lines, models.CheckoutLine{
			ProductID: e.ID,
			Name:      e.Name,
			Quantity:  e.Quantity,
			Status:    models.LineStatusSkipped,
			Error:     notInCatalog,
		})
	}

	var applied []appliedLine
	for i, e := range live {
		line := &res.Lines[i]
		done, err := c.applyLine(ctx, e, line)
		if err != nil {
			line.Status = models.LineStatusFailed
			line.Error = err.Error()
			for j := i + 1; j < len(live); j++ {
				res.Lines[j].Status = models.LineStatusSkipped
			}
			log.Error("checkout line failed", slog.Int64("product_id", e.ID), slog.Any("err", err))
			c.compensate(ctx, log, &res, applied)
			res.FinishedAt = c.now()
			return res, fmt.Errorf("checkout product %d: %w", e.ID, err)
		}
		done.idx = i
		applied = append(applied, done)
	}

	res.Completed = true
	if err := c.state.RemoveCheckedOut(ctx, slices.Concat(live, stale)); err != nil {
		log.Error("remove checked out entries", slog.Any("err", err))
		res.FinishedAt = c.now()
		return res, fmt.Errorf("remove checked out entries: %w", err)
	}
	res.CartCleared = true
	res.FinishedAt = c.now()
	log.Info("checkout completed", slog.Int("lines", len(live)), slog.Int("skipped", len(stale)), slog.String("total", res.Total))
	return res, nil
}

func (c *Checkout) applyLine(ctx context.Context, e models.CartEntry, line *models.CheckoutLine) (appliedLine, error) {
	current, err := c.backend.GetProduct(ctx, e.ID)
	if err != nil {
		return appliedLine{}, fmt.Errorf("fetch product: %w", err)
	}
	line.PreviousStock = current.StockQuantity
	if e.Quantity > current.StockQuantity {
		return appliedLine{}, fmt.Errorf("%w: want %d, have %d", ErrInsufficientStock, e.Quantity, current.StockQuantity)
	}

	img := c.lineImage(ctx, current)
	updated := current
	updated.StockQuantity = current.StockQuantity - e.Quantity
	if err := c.backend.UpdateProduct(ctx, updated, img); err != nil {
		return appliedLine{}, fmt.Errorf("update stock: %w", err)
	}
	line.NewStock = updated.StockQuantity
	line.ImageAttached = img != nil
	line.Status = models.LineStatusApplied
	return appliedLine{previous: current, image: img}, nil
}

// lineImage returns p's own image, or nil when it has none.
func (c *Checkout) lineImage(ctx context.Context, p models.Product) *models.Image {
	if c.images == nil {
		return nil
	}
	img, err := c.images.Image(ctx, p.ID)
	if err != nil {
		c.log.Debug("checkout line without image", slog.Int64("product_id", p.ID), slog.Any("err", err))
		return nil
	}
	if p.ImageName != "" {
		img.Name = p.ImageName
	}
	return &img
}

// compensate restores stock on applied lines, newest first. It ignores ctx
// cancellation so an aborted request still gets its writes undone.
func (c *Checkout) compensate(ctx context.Context, log *slog.Logger, res *models.CheckoutResult, applied []appliedLine) {
	ctx = context.WithoutCancel(ctx)
	for k := len(applied) - 1; k >= 0; k-- {
		a := applied[k]
		line := &res.Lines[a.idx]
		if err := c.backend.UpdateProduct(ctx, a.previous, a.image); err != nil {
			line.Status = models.LineStatusCompensationFailed
			line.Error = err.Error()
			log.Error("stock compensation failed",
				slog.Int64("product_id", a.previous.ID),
				slog.Int("stock", a.previous.StockQuantity),
				slog.Any("err", err))
			continue
		}
		line.Status = models.LineStatusCompensated
	}
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	models "storefront/model"
)

type ImageSource string

const (
	ImageFromBackend ImageSource = "backend"
	ImageFallback    ImageSource = "fallback"
)

// ResolvedImage says where a product's picture comes from. A fallback
// carries the reason the backend image could not be used.
type ResolvedImage struct {
	ProductID int64       `json:"product_id"`
	URL       string      `json:"url"`
	Source    ImageSource `json:"source"`
	Reason    string      `json:"reason,omitempty"`
}

type ImageFetcher interface {
	ProductImage(ctx context.Context, id int64) (models.Image, error)
}

// ImageResolver fetches product images and keeps the ones it got, keyed by
// product id.
type ImageResolver struct {
	fetcher ImageFetcher
	log     *slog.Logger
	limit   int

	mu    sync.RWMutex
	cache map[int64]models.Image
}

func NewImageResolver(fetcher ImageFetcher, limit int, log *slog.Logger) *ImageResolver {
	if limit <= 0 {
		limit = 8
	}
	if log == nil {
		log = slog.Default()
	}
	return &ImageResolver{
		fetcher: fetcher,
		log:     log.With("component", "images"),
		limit:   limit,
		cache:   make(map[int64]models.Image),
	}
}

// ImageURL is the storefront path serving a cached backend image.
func ImageURL(id int64) string {
	return fmt.Sprintf("/api/products/%d/image", id)
}

// Image returns the cached image for id, fetching it on a miss.
func (r *ImageResolver) Image(ctx context.Context, id int64) (models.Image, error) {
	if img, ok := r.Cached(id); ok {
		return img, nil
	}
	img, err := r.fetcher.ProductImage(ctx, id)
	if err != nil {
		return models.Image{}, err
	}
	r.mu.Lock()
	r.cache[id] = img
	r.mu.Unlock()
	return img, nil
}

func (r *ImageResolver) Cached(id int64) (models.Image, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	img, ok := r.cache[id]
	return img, ok
}

func (r *ImageResolver) Forget(id int64) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

// Resolve returns the image for a single product, falling back to its
// category placeholder.
func (r *ImageResolver) Resolve(ctx context.Context, p models.Product) ResolvedImage {
	if _, err := r.Image(ctx, p.ID); err != nil {
		r.log.Debug("image fallback", slog.Int64("product_id", p.ID), slog.Any("err", err))
		return ResolvedImage{ProductID: p.ID, URL: CategoryImage(p.Category), Source: ImageFallback, Reason: err.Error()}
	}
	return ResolvedImage{ProductID: p.ID, URL: ImageURL(p.ID), Source: ImageFromBackend}
}

// ResolveAll resolves images for products concurrently. A failed fetch only
// affects its own product; the result is in the same order as products.
func (r *ImageResolver) ResolveAll(ctx context.Context, products []models.Product) []ResolvedImage {
	out := make([]ResolvedImage, len(products))
	var g errgroup.Group
	g.SetLimit(r.limit)
	for i := range products {
		g.Go(func() error {
			out[i] = r.Resolve(ctx, products[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	models "storefront/model"
)

var (
	ErrUnavailable   = errors.New("product is out of stock")
	ErrNotInWishlist = errors.New("product not in wishlist")
)

// ConnectHint is shown with a catalog failure.
const ConnectHint = "Make sure the backend is running and reachable"

// Backend is the product REST service as the storefront uses it.
type Backend interface {
	CatalogSource
	CheckoutBackend
	ImageFetcher
	Search(ctx context.Context, keyword string) ([]models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// Service assembles the storefront views on top of State.
type Service struct {
	backend  Backend
	state    *State
	images   *ImageResolver
	checkout *Checkout
	log      *slog.Logger
}

func NewService(backend Backend, state *State, images *ImageResolver, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		backend:  backend,
		state:    state,
		images:   images,
		checkout: NewCheckout(backend, images, state, log),
		log:      log.With("component", "service"),
	}
}

// --- DTOs ---

type ProductDTO struct {
	models.Product
	Discount   int           `json:"discount"`
	OldPrice   float64       `json:"oldPrice"`
	Image      ResolvedImage `json:"image"`
	InCart     int           `json:"inCart"`
	InWishlist bool          `json:"inWishlist"`
}

type HomeDTO struct {
	Error      string          `json:"error,omitempty"`
	Hint       string          `json:"hint,omitempty"`
	Category   string          `json:"category,omitempty"`
	Products   []ProductDTO    `json:"products"`
	Categories []CategoryCount `json:"categories"`
	Available  []string        `json:"availableCategories"`
}

type ProductDetailDTO struct {
	ProductDTO
	StockLabel string `json:"stockLabel"`
}

type ImageDTO struct {
	Image       *models.Image
	FallbackURL string
}

type SearchDTO struct {
	Keyword  string           `json:"keyword"`
	Results  []models.Product `json:"results"`
	Degraded bool             `json:"degraded"`
	Reason   string           `json:"reason,omitempty"`
}

type CartLineDTO struct {
	models.CartEntry
	LineTotal string        `json:"lineTotal"`
	Image     ResolvedImage `json:"image"`
}

type CartDTO struct {
	Lines   []CartLineDTO `json:"lines"`
	Hidden  int           `json:"hidden"`
	Summary CartSummary   `json:"summary"`
}

type WishlistLineDTO struct {
	models.WishlistEntry
	Image ResolvedImage `json:"image"`
}

type WishlistDTO struct {
	Items []WishlistLineDTO `json:"items"`
}

// --- catalog views ---

func (s *Service) Refresh(ctx context.Context) error {
	return s.state.Refresh(ctx)
}

func (s *Service) productDTO(p models.Product, img ResolvedImage) ProductDTO {
	dto := ProductDTO{
		Product:    p,
		Discount:   Discount(p.ID),
		OldPrice:   OldPrice(p.ID, p.Price),
		Image:      img,
		InWishlist: s.state.IsInWishlist(p.ID),
	}
	if e, ok := s.state.CartEntry(p.ID); ok {
		dto.InCart = e.Quantity
	}
	return dto
}

// Home lists the catalog, optionally narrowed to one category. A failed
// catalog load is reported in the DTO instead of products.
func (s *Service) Home(ctx context.Context, category string) HomeDTO {
	if msg := s.state.CatalogError(); msg != "" {
		return HomeDTO{Error: msg, Hint: ConnectHint, Products: []ProductDTO{}, Categories: []CategoryCount{}, Available: []string{}}
	}
	all := s.state.Catalog()
	shown := FilterByCategory(all, category)
	imgs := s.images.ResolveAll(ctx, shown)

	products := make([]ProductDTO, 0, len(shown))
	for i, p := range shown {
		products = append(products, s.productDTO(p, imgs[i]))
	}
	return HomeDTO{
		Category:   category,
		Products:   products,
		Categories: CountCategories(all),
		Available:  Categories(all),
	}
}

func (s *Service) ProductDetail(ctx context.Context, id int64) (ProductDetailDTO, error) {
	p, err := s.backend.GetProduct(ctx, id)
	if err != nil {
		return ProductDetailDTO{}, fmt.Errorf("get product %d: %w", id, err)
	}
	img := ResolvedImage{ProductID: id, URL: CategoryImage(p.Category), Source: ImageFallback, Reason: "product has no image"}
	if p.ImageName != "" {
		img = s.images.Resolve(ctx, p)
	}
	dto := ProductDetailDTO{ProductDTO: s.productDTO(p, img), StockLabel: "Out of Stock"}
	if p.ProductAvailable {
		dto.StockLabel = fmt.Sprintf("In Stock (%d units available)", p.StockQuantity)
	}
	return dto, nil
}

// DeleteProduct removes the product from the backend and from the
// shopper's cart and wishlist, then reloads the catalog.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.backend.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	s.images.Forget(id)
	if err := s.state.RemoveFromCart(ctx, id); err != nil {
		return err
	}
	if err := s.state.RemoveFromWishlist(ctx, id); err != nil {
		return err
	}
	if err := s.state.Refresh(ctx); err != nil {
		s.log.Warn("refresh after delete", slog.Int64("product_id", id), slog.Any("err", err))
	}
	return nil
}

// ProductImage returns the backend image for id, or the category
// placeholder URL when there is none.
func (s *Service) ProductImage(ctx context.Context, id int64) ImageDTO {
	img, err := s.images.Image(ctx, id)
	if err == nil {
		return ImageDTO{Image: &img}
	}
	category := ""
	if p, ok := s.knownProduct(id); ok {
		category = p.Category
	}
	s.log.Debug("serving fallback image", slog.Int64("product_id", id), slog.Any("err", err))
	return ImageDTO{FallbackURL: CategoryImage(category)}
}

func (s *Service) knownProduct(id int64) (models.Product, bool) {
	if p, ok := s.state.CatalogProduct(id); ok {
		return p, true
	}
	if e, ok := s.state.CartEntry(id); ok {
		return e.Product, true
	}
	if e, ok := s.state.WishlistEntry(id); ok {
		return e.Product, true
	}
	return models.Product{}, false
}

// Search never fails: a backend error is returned as a degraded, empty result.
func (s *Service) Search(ctx context.Context, keyword string) SearchDTO {
	keyword = strings.TrimSpace(keyword)
	out := SearchDTO{Keyword: keyword, Results: []models.Product{}}
	if keyword == "" {
		return out
	}
	res, err := s.backend.Search(ctx, keyword)
	if err != nil {
		s.log.Warn("search failed", slog.String("keyword", keyword), slog.Any("err", err))
		out.Degraded = true
		out.Reason = err.Error()
		return out
	}
	if res != nil {
		out.Results = res
	}
	return out
}

// --- cart ---

// GetCart lists cart entries. Once a catalog is loaded, entries for products
// no longer in it are hidden (but kept in the cart) and counted in Hidden.
// Checkout works on the same visible set.
func (s *Service) GetCart(ctx context.Context) CartDTO {
	visible, stale := s.state.SplitCart()

	products := make([]models.Product, len(visible))
	for i, e := range visible {
		products[i] = e.Product
	}
	imgs := s.images.ResolveAll(ctx, products)

	lines := make([]CartLineDTO, len(visible))
	for i, e := range visible {
		lines[i] = CartLineDTO{CartEntry: e, LineTotal: LineTotal(e), Image: imgs[i]}
	}
	return CartDTO{Lines: lines, Hidden: len(stale), Summary: Summarize(visible)}
}

// lookup finds a product in the catalog, asking the backend on a miss.
func (s *Service) lookup(ctx context.Context, id int64) (models.Product, error) {
	if p, ok := s.state.CatalogProduct(id); ok {
		return p, nil
	}
	p, err := s.backend.GetProduct(ctx, id)
	if err != nil {
		return models.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) AddToCart(ctx context.Context, productID int64) (models.CartEntry, error) {
	p, err := s.lookup(ctx, productID)
	if err != nil {
		return models.CartEntry{}, err
	}
	if !p.ProductAvailable {
		return models.CartEntry{}, ErrUnavailable
	}
	return s.state.AddToCart(ctx, p)
}

func (s *Service) RemoveFromCart(ctx context.Context, productID int64) error {
	return s.state.RemoveFromCart(ctx, productID)
}

func (s *Service) ClearCart(ctx context.Context) error {
	return s.state.ClearCart(ctx)
}

func (s *Service) IncreaseQuantity(ctx context.Context, productID int64) (models.CartEntry, error) {
	return s.state.IncreaseQuantity(ctx, productID)
}

func (s *Service) DecreaseQuantity(ctx context.Context, productID int64) (models.CartEntry, error) {
	return s.state.DecreaseQuantity(ctx, productID)
}

func (s *Service) SetQuantity(ctx context.Context, productID int64, qty int) (models.CartEntry, error) {
	return s.state.SetQuantity(ctx, productID, qty)
}

// --- wishlist ---

func (s *Service) GetWishlist(ctx context.Context) WishlistDTO {
	entries := s.state.Wishlist()
	products := make([]models.Product, len(entries))
	for i, e := range entries {
		products[i] = e.Product
	}
	imgs := s.images.ResolveAll(ctx, products)

	items := make([]WishlistLineDTO, len(entries))
	for i, e := range entries {
		items[i] = WishlistLineDTO{WishlistEntry: e, Image: imgs[i]}
	}
	return WishlistDTO{Items: items}
}

func (s *Service) AddToWishlist(ctx context.Context, productID int64) error {
	p, err := s.lookup(ctx, productID)
	if err != nil {
		return err
	}
	return s.state.AddToWishlist(ctx, p)
}

func (s *Service) RemoveFromWishlist(ctx context.Context, productID int64) error {
	return s.state.RemoveFromWishlist(ctx, productID)
}

// ToggleWishlist reports whether the product is saved afterwards.
func (s *Service) ToggleWishlist(ctx context.Context, productID int64) (bool, error) {
	if e, ok := s.state.WishlistEntry(productID); ok {
		return s.state.ToggleWishlist(ctx, e.Product)
	}
	p, err := s.lookup(ctx, productID)
	if err != nil {
		return false, err
	}
	return s.state.ToggleWishlist(ctx, p)
}

// MoveToCart adds the saved snapshot to the cart. The wishlist keeps it.
func (s *Service) MoveToCart(ctx context.Context, productID int64) (models.CartEntry, error) {
	e, ok := s.state.WishlistEntry(productID)
	if !ok {
		return models.CartEntry{}, fmt.Errorf("%w: %d", ErrNotInWishlist, productID)
	}
	if !e.ProductAvailable {
		return models.CartEntry{}, ErrUnavailable
	}
	return s.state.AddToCart(ctx, e.Product)
}

// --- checkout ---

// Checkout submits the cart and reloads the catalog so views show the new stock.
func (s *Service) Checkout(ctx context.Context) (models.CheckoutResult, error) {
	res, err := s.checkout.Submit(ctx)
	if err != nil {
		return res, err
	}
	if err := s.state.Refresh(ctx); err != nil {
		s.log.Warn("refresh after checkout", slog.Any("err", err))
	}
	return res, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	models "storefront/model"
	"storefront/store"
)

var (
	ErrNotInCart       = errors.New("product not in cart")
	ErrInvalidQuantity = errors.New("quantity must be >= 1")
)

// CatalogSource fetches the full product catalog.
type CatalogSource interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

type StateOptions struct {
	// Namespace prefixes the cart and wishlist slot names.
	Namespace string
	Logger    *slog.Logger
}

// State owns the catalog snapshot and the shopper's cart and wishlist.
// Every mutation persists the whole collection before it returns; the
// in-memory copy is only replaced once the durable write succeeded.
type State struct {
	log          *slog.Logger
	src          CatalogSource
	store        store.Store
	cartSlot     string
	wishlistSlot string

	mu         sync.Mutex
	catalog    []models.Product
	catalogErr string
	// refreshSeq numbers Refresh calls; appliedSeq is the newest one applied.
	refreshSeq uint64
	appliedSeq uint64
	cart       []models.CartEntry
	wishlist   []models.WishlistEntry
}

// NewState restores the cart and wishlist from st. Missing or unreadable
// slot contents start out empty; a failing store is an error.
func NewState(ctx context.Context, src CatalogSource, st store.Store, opts StateOptions) (*State, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &State{
		log:          log.With("component", "state"),
		src:          src,
		store:        st,
		cartSlot:     store.SlotName(opts.Namespace, store.SlotCart),
		wishlistSlot: store.SlotName(opts.Namespace, store.SlotWishlist),
	}

	var cart []models.CartEntry
	if err := s.restore(ctx, s.cartSlot, &cart); err != nil {
		return nil, err
	}
	s.cart = normalizeCart(cart)

	var wishlist []models.WishlistEntry
	if err := s.restore(ctx, s.wishlistSlot, &wishlist); err != nil {
		return nil, err
	}
	s.wishlist = normalizeWishlist(wishlist)
	return s, nil
}

func (s *State) restore(ctx context.Context, slot string, v interface{}) error {
	data, err := s.store.Load(ctx, slot)
	if errors.Is(err, store.ErrSlotNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore %s: %w", slot, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn("discarding malformed slot", slog.String("slot", slot), slog.Any("err", err))
		return nil
	}
	return nil
}

func normalizeCart(in []models.CartEntry) []models.CartEntry {
	out := make([]models.CartEntry, 0, len(in))
	idx := make(map[int64]int, len(in))
	for _, e := range in {
		if e.Quantity < 1 {
			e.Quantity = 1
		}
		if i, ok := idx[e.ID]; ok {
			out[i].Quantity += e.Quantity
			continue
		}
		idx[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

func normalizeWishlist(in []models.WishlistEntry) []models.WishlistEntry {
	out := make([]models.WishlistEntry, 0, len(in))
	seen := make(map[int64]bool, len(in))
	for _, e := range in {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

// --- catalog ---

// Refresh reloads the catalog. On failure the previous catalog stays and
// the error text is kept for CatalogError. A refresh that finishes after a
// newer one has been applied is dropped.
func (s *State) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.refreshSeq++
	seq := s.refreshSeq
	s.mu.Unlock()

	products, err := s.src.ListProducts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.appliedSeq {
		s.log.Debug("dropping stale catalog refresh", slog.Uint64("seq", seq), slog.Uint64("applied", s.appliedSeq))
		return err
	}
	s.appliedSeq = seq
	if err != nil {
		s.catalogErr = err.Error()
		if s.catalogErr == "" {
			s.catalogErr = "catalog refresh failed"
		}
		s.log.Warn("catalog refresh failed", slog.Any("err", err))
		return err
	}
	if products == nil {
		products = []models.Product{}
	}
	s.catalog = products
	s.catalogErr = ""
	s.log.Debug("catalog refreshed", slog.Int("products", len(products)))
	return nil
}

func (s *State) Catalog() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Product(nil), s.catalog...)
}

func (s *State) CatalogError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalogErr
}

// CatalogProduct looks id up in the current catalog snapshot.
func (s *State) CatalogProduct(id int64) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// --- cart ---

func (s *State) Cart() []models.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CartEntry(nil), s.cart...)
}

func (s *State) CartEntry(id int64) (models.CartEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := cartIndex(s.cart, id); i >= 0 {
		return s.cart[i], true
	}
	return models.CartEntry{}, false
}

// SplitCart separates cart entries whose product is in the loaded catalog
// from those that are not. Before any catalog is loaded every entry is live.
func (s *State) SplitCart() (live, stale []models.CartEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.catalog) == 0 {
		return append([]models.CartEntry(nil), s.cart...), nil
	}
	listed := make(map[int64]bool, len(s.catalog))
	for _, p := range s.catalog {
		listed[p.ID] = true
	}
	live = make([]models.CartEntry, 0, len(s.cart))
	for _, e := range s.cart {
		if listed[e.ID] {
			live = append(live, e)
		} else {
			stale = append(stale, e)
		}
	}
	return live, stale
}

func cartIndex(cart []models.CartEntry, id int64) int {
	for i, e := range cart {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// AddToCart bumps the quantity of an existing entry by one, leaving the
// snapshot taken at first add untouched, or inserts p with quantity 1.
func (s *State) AddToCart(ctx context.Context, p models.Product) (models.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]models.CartEntry(nil), s.cart...)
	i := cartIndex(next, p.ID)
	if i >= 0 {
		next[i].Quantity++
	} else {
		i = len(next)
		next = append(next, models.CartEntry{Product: p, Quantity: 1})
	}
	if err := s.saveCart(ctx, next); err != nil {
		return models.CartEntry{}, err
	}
	return next[i], nil
}

// RemoveFromCart deletes the entry for id. Removing an absent id is not an error.
func (s *State) RemoveFromCart(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.CartEntry, 0, len(s.cart))
	for _, e := range s.cart {
		if e.ID != id {
			next = append(next, e)
		}
	}
	return s.saveCart(ctx, next)
}

// RemoveCheckedOut takes the quantities in done off the current cart.
// Units added after done was read stay in the cart.
func (s *State) RemoveCheckedOut(ctx context.Context, done []models.CartEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[int64]int, len(done))
	for _, e := range done {
		taken[e.ID] += e.Quantity
	}
	next := make([]models.CartEntry, 0, len(s.cart))
	for _, e := range s.cart {
		e.Quantity -= taken[e.ID]
		if e.Quantity < 1 {
			continue
		}
		next = append(next, e)
	}
	return s.saveCart(ctx, next)
}

func (s *State) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCart(ctx, []models.CartEntry{})
}

// IncreaseQuantity adds one unit unless the entry already reached its stock.
func (s *State) IncreaseQuantity(ctx context.Context, id int64) (models.CartEntry, error) {
	return s.adjust(ctx, id, func(e models.CartEntry) int {
		if e.Quantity < e.StockQuantity {
			return e.Quantity + 1
		}
		return e.Quantity
	})
}

// DecreaseQuantity removes one unit, never going below 1.
func (s *State) DecreaseQuantity(ctx context.Context, id int64) (models.CartEntry, error) {
	return s.adjust(ctx, id, func(e models.CartEntry) int {
		return max(1, e.Quantity-1)
	})
}

// SetQuantity sets the quantity, clamped to the stock recorded for the entry.
func (s *State) SetQuantity(ctx context.Context, id int64, qty int) (models.CartEntry, error) {
	if qty < 1 {
		return models.CartEntry{}, ErrInvalidQuantity
	}
	return s.adjust(ctx, id, func(e models.CartEntry) int {
		return clampToStock(qty, e.StockQuantity)
	})
}

func clampToStock(qty, stock int) int {
	if qty > stock {
		qty = stock
	}
	return max(1, qty)
}

func (s *State) adjust(ctx context.Context, id int64, next func(models.CartEntry) int) (models.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := cartIndex(s.cart, id)
	if i < 0 {
		return models.CartEntry{}, fmt.Errorf("%w: %d", ErrNotInCart, id)
	}
	q := next(s.cart[i])
	if q == s.cart[i].Quantity {
		return s.cart[i], nil
	}
	updated := append([]models.CartEntry(nil), s.cart...)
	updated[i].Quantity = q
	if err := s.saveCart(ctx, updated); err != nil {
		return models.CartEntry{}, err
	}
	return updated[i], nil
}

// saveCart must be called with s.mu held.
func (s *State) saveCart(ctx context.Context, next []models.CartEntry) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.store.Save(ctx, s.cartSlot, data); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	s.cart = next
	return nil
}

// --- wishlist ---

func (s *State) Wishlist() []models.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WishlistEntry(nil), s.wishlist...)
}

func (s *State) WishlistEntry(id int64) (models.WishlistEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := wishlistIndex(s.wishlist, id); i >= 0 {
		return s.wishlist[i], true
	}
	return models.WishlistEntry{}, false
}

func wishlistIndex(list []models.WishlistEntry, id int64) int {
	for i, e := range list {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *State) IsInWishlist(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wishlistIndex(s.wishlist, id) >= 0
}

// AddToWishlist is a no-op when p is already saved.
func (s *State) AddToWishlist(ctx context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addToWishlist(ctx, p)
}

func (s *State) addToWishlist(ctx context.Context, p models.Product) error {
	if wishlistIndex(s.wishlist, p.ID) >= 0 {
		return nil
	}
	next := append(append([]models.WishlistEntry(nil), s.wishlist...), models.WishlistEntry{Product: p})
	return s.saveWishlist(ctx, next)
}

func (s *State) RemoveFromWishlist(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeFromWishlist(ctx, id)
}

func (s *State) removeFromWishlist(ctx context.Context, id int64) error {
	next := make([]models.WishlistEntry, 0, len(s.wishlist))
	for _, e := range s.wishlist {
		if e.ID != id {
			next = append(next, e)
		}
	}
	return s.saveWishlist(ctx, next)
}

// ToggleWishlist removes p when saved and adds it otherwise. It reports
// whether p is in the wishlist afterwards.
func (s *State) ToggleWishlist(ctx context.Context, p models.Product) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wishlistIndex(s.wishlist, p.ID) >= 0 {
		return false, s.removeFromWishlist(ctx, p.ID)
	}
	return true, s.addToWishlist(ctx, p)
}

func (s *State) saveWishlist(ctx context.Context, next []models.WishlistEntry) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode wishlist: %w", err)
	}
	if err := s.store.Save(ctx, s.wishlistSlot, data); err != nil {
		return fmt.Errorf("persist wishlist: %w", err)
	}
	s.wishlist = next
	return nil
}

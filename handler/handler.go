package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"storefront/client"
	models "storefront/model"
	"storefront/service"
)

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc service.ServiceInterface
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface) *Handler {
	return &Handler{svc: s}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.Health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Catalog
	api.HandleFunc("/home", h.Home).Methods("GET")
	api.HandleFunc("/refresh", h.Refresh).Methods("POST")
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/products/{id:-?[0-9]+}", h.ProductDetail).Methods("GET")
	api.HandleFunc("/products/{id:-?[0-9]+}", h.DeleteProduct).Methods("DELETE")
	api.HandleFunc("/products/{id:-?[0-9]+}/image", h.ProductImage).Methods("GET")

	// Cart
	api.HandleFunc("/cart", h.GetCart).Methods("GET")
	api.HandleFunc("/cart", h.ClearCart).Methods("DELETE")
	api.HandleFunc("/cart/{id:-?[0-9]+}", h.AddToCart).Methods("POST")
	api.HandleFunc("/cart/{id:-?[0-9]+}", h.RemoveFromCart).Methods("DELETE")
	api.HandleFunc("/cart/{id:-?[0-9]+}/increase", h.IncreaseQuantity).Methods("POST")
	api.HandleFunc("/cart/{id:-?[0-9]+}/decrease", h.DecreaseQuantity).Methods("POST")
	api.HandleFunc("/cart/{id:-?[0-9]+}/quantity", h.SetQuantity).Methods("PUT")

	// Wishlist
	api.HandleFunc("/wishlist", h.GetWishlist).Methods("GET")
	api.HandleFunc("/wishlist/{id:-?[0-9]+}", h.AddToWishlist).Methods("POST")
	api.HandleFunc("/wishlist/{id:-?[0-9]+}", h.RemoveFromWishlist).Methods("DELETE")
	api.HandleFunc("/wishlist/{id:-?[0-9]+}/toggle", h.ToggleWishlist).Methods("POST")
	api.HandleFunc("/wishlist/{id:-?[0-9]+}/move-to-cart", h.MoveToCart).Methods("POST")

	// Checkout
	api.HandleFunc("/checkout", h.Checkout).Methods("POST")
}

// --- request / response shapes ---
type setQuantityReq struct {
	Quantity *int `json:"quantity"`
}

type checkoutErrResp struct {
	Error  string                `json:"error"`
	Result models.CheckoutResult `json:"result"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrNotFound),
		errors.Is(err, service.ErrNotInCart),
		errors.Is(err, service.ErrNotInWishlist):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnavailable),
		errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeSvcErr(w http.ResponseWriter, err error) {
	writeErr(w, statusFor(err), err.Error())
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

// --- Handler ---

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Home handles GET /api/home?category=...
// A failed catalog load is still a 200; the body carries error and hint.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Home(r.Context(), r.URL.Query().Get("category")))
}

// Refresh handles POST /api/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// Search handles GET /api/search?keyword=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Search(r.Context(), r.URL.Query().Get("keyword")))
}

// ProductDetail handles GET /api/products/{id}
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.svc.ProductDetail(r.Context(), id)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteProduct handles DELETE /api/products/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ProductImage handles GET /api/products/{id}/image
// Without a backend image the client is redirected to the category picture.
func (h *Handler) ProductImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	img := h.svc.ProductImage(r.Context(), id)
	if img.Image == nil {
		http.Redirect(w, r, img.FallbackURL, http.StatusFound)
		return
	}
	ct := img.Image.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Image.Data)
}

// GetCart handles GET /api/cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetCart(r.Context()))
}

// AddToCart handles POST /api/cart/{id}
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.AddToCart(r.Context(), id)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// RemoveFromCart handles DELETE /api/cart/{id}
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveFromCart(r.Context(), id); err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ClearCart handles DELETE /api/cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearCart(r.Context()); err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// IncreaseQuantity handles POST /api/cart/{id}/increase
func (h *Handler) IncreaseQuantity(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.svc.IncreaseQuantity)
}

// DecreaseQuantity handles POST /api/cart/{id}/decrease
func (h *Handler) DecreaseQuantity(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.svc.DecreaseQuantity)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (models.CartEntry, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := fn(r.Context(), id)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// SetQuantity handles PUT /api/cart/{id}/quantity
// body: { "quantity": 3 }
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req setQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Quantity == nil {
		writeErr(w, http.StatusBadRequest, "quantity is required")
		return
	}
	e, err := h.svc.SetQuantity(r.Context(), id, *req.Quantity)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// GetWishlist handles GET /api/wishlist
func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetWishlist(r.Context()))
}

// AddToWishlist handles POST /api/wishlist/{id}
func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.AddToWishlist(r.Context(), id); err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"inWishlist": true})
}

// RemoveFromWishlist handles DELETE /api/wishlist/{id}
func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveFromWishlist(r.Context(), id); err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"inWishlist": false})
}

// ToggleWishlist handles POST /api/wishlist/{id}/toggle
func (h *Handler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, err := h.svc.ToggleWishlist(r.Context(), id)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"inWishlist": in})
}

// MoveToCart handles POST /api/wishlist/{id}/move-to-cart
func (h *Handler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.MoveToCart(r.Context(), id)
	if err != nil {
		writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Checkout handles POST /api/checkout
// A run that failed part way answers 409 with the per-line result.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Checkout(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, service.ErrEmptyCart):
		writeErr(w, http.StatusBadRequest, err.Error())
	case !res.Completed && len(res.Lines) > 0:
		writeJSON(w, http.StatusConflict, checkoutErrResp{Error: err.Error(), Result: res})
	default:
		writeJSON(w, http.StatusInternalServerError, checkoutErrResp{Error: err.Error(), Result: res})
	}
}

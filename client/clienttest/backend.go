// Package clienttest provides an in-memory product backend for tests.
package clienttest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	models "storefront/model"
)

// UpdateCall records one PUT /product/{id} request.
type UpdateCall struct {
	ProductID int64
	Product   models.Product
	HasImage  bool
	ImageName string
	ImageData []byte
}

// Backend mimics the product REST service. Failure knobs are plain fields;
// set them before issuing requests.
type Backend struct {
	mu       sync.Mutex
	products map[int64]models.Product
	images   map[int64]models.Image

	// ListStatus, when non-zero, is returned by GET /products.
	ListStatus int
	// SearchStatus, when non-zero, is returned by the search endpoint.
	SearchStatus int
	// UpdateStatus maps product id to the status its PUT should fail with.
	UpdateStatus map[int64]int

	Updates []UpdateCall
	Deleted []int64

	Server *httptest.Server
}

func NewBackend(products ...models.Product) *Backend {
	b := &Backend{
		products:     make(map[int64]models.Product),
		images:       make(map[int64]models.Image),
		UpdateStatus: make(map[int64]int),
	}
	for _, p := range products {
		b.products[p.ID] = p
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", b.list).Methods("GET")
	api.HandleFunc("/products/search", b.search).Methods("GET")
	api.HandleFunc("/product/{id:[0-9]+}", b.get).Methods("GET")
	api.HandleFunc("/product/{id:[0-9]+}/image", b.image).Methods("GET")
	api.HandleFunc("/product/{id:[0-9]+}", b.update).Methods("PUT")
	api.HandleFunc("/product/{id:[0-9]+}", b.delete).Methods("DELETE")

	b.Server = httptest.NewServer(r)
	return b
}

// URL is the API base URL to hand to client.New.
func (b *Backend) URL() string { return b.Server.URL + "/api" }

func (b *Backend) Close() { b.Server.Close() }

func (b *Backend) SetImage(id int64, img models.Image) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.images[id] = img
}

func (b *Backend) SetProduct(p models.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.products[p.ID] = p
}

func (b *Backend) Product(id int64) (models.Product, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.products[id]
	return p, ok
}

func (b *Backend) UpdateCalls() []UpdateCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]UpdateCall(nil), b.Updates...)
}

func (b *Backend) sorted() []models.Product {
	out := make([]models.Product, 0, len(b.products))
	for _, p := range b.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (b *Backend) list(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ListStatus != 0 {
		http.Error(w, "backend unavailable", b.ListStatus)
		return
	}
	writeJSON(w, http.StatusOK, b.sorted())
}

func (b *Backend) search(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SearchStatus != 0 {
		http.Error(w, "search failed", b.SearchStatus)
		return
	}
	kw := strings.ToLower(r.URL.Query().Get("keyword"))
	out := []models.Product{}
	for _, p := range b.sorted() {
		hay := strings.ToLower(p.Name + " " + p.Brand + " " + p.Category + " " + p.Description)
		if kw != "" && strings.Contains(hay, kw) {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) get(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.products[pathID(r)]
	if !ok {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (b *Backend) image(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	img, ok := b.images[pathID(r)]
	if !ok {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	_, _ = w.Write(img.Data)
}

func (b *Backend) update(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "bad multipart: "+err.Error(), http.StatusBadRequest)
		return
	}
	call := UpdateCall{ProductID: id}

	pf, _, err := r.FormFile("product")
	if err != nil {
		http.Error(w, "missing product part", http.StatusBadRequest)
		return
	}
	defer pf.Close()
	if err := json.NewDecoder(pf).Decode(&call.Product); err != nil {
		http.Error(w, "bad product json", http.StatusBadRequest)
		return
	}

	if f, hdr, err := r.FormFile("imageFile"); err == nil {
		call.HasImage = true
		call.ImageName = hdr.Filename
		call.ImageData, _ = io.ReadAll(f)
		f.Close()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.Updates = append(b.Updates, call)
	if code := b.UpdateStatus[id]; code != 0 {
		http.Error(w, "update rejected", code)
		return
	}
	if _, ok := b.products[id]; !ok {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}
	b.products[id] = call.Product
	writeJSON(w, http.StatusOK, call.Product)
}

func (b *Backend) delete(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.products[id]; !ok {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}
	delete(b.products, id)
	delete(b.images, id)
	b.Deleted = append(b.Deleted, id)
	w.WriteHeader(http.StatusOK)
}

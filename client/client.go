// Package client talks to the product backend's REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	models "storefront/model"
)

const DefaultBaseURL = "http://localhost:8080/api"

// ErrNotFound matches any 404 answer from the backend.
var ErrNotFound = errors.New("not found")

// APIError is returned for every non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client issues single-shot requests. It never retries; cancellation and
// deadlines come from the caller's context.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for baseURL. A nil httpClient means http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := c.getJSON(ctx, "/products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	var p models.Product
	if err := c.getJSON(ctx, productPath(id), &p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

// Search runs the backend keyword search.
func (c *Client) Search(ctx context.Context, keyword string) ([]models.Product, error) {
	var out []models.Product
	q := url.Values{"keyword": {keyword}}
	if err := c.getJSON(ctx, "/products/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ProductImage(ctx context.Context, id int64) (models.Image, error) {
	path := productPath(id) + "/image"
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return models.Image{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Image{}, fmt.Errorf("read image %d: %w", id, err)
	}
	if len(data) == 0 {
		return models.Image{}, fmt.Errorf("image %d: empty body", id)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return models.Image{Name: "img", ContentType: ct, Data: data}, nil
}

// UpdateProduct rewrites a product. The request is multipart: a "product"
// JSON part and, when img is non-nil, an "imageFile" part.
func (c *Client) UpdateProduct(ctx context.Context, p models.Product, img *models.Image) error {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="product"; filename="blob"`)
	h.Set("Content-Type", "application/json")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(pw).Encode(p); err != nil {
		return fmt.Errorf("encode product %d: %w", p.ID, err)
	}

	if img != nil {
		name := img.Name
		if name == "" {
			name = "img"
		}
		ih := make(textproto.MIMEHeader)
		ih.Set("Content-Disposition", fmt.Sprintf(`form-data; name="imageFile"; filename=%q`, name))
		ct := img.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		ih.Set("Content-Type", ct)
		iw, err := mw.CreatePart(ih)
		if err != nil {
			return err
		}
		if _, err := iw.Write(img.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPut, productPath(p.ID), body, mw.FormDataContentType())
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	resp, err := c.do(ctx, http.MethodDelete, productPath(id), nil, "")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func productPath(id int64) string {
	return "/product/" + strconv.FormatInt(id, 10)
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do sends the request and turns any non-2xx status into an *APIError.
// On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if method == http.MethodGet {
		req.Header.Set("Accept", "application/json, */*")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	return resp, nil
}

// Package catalog reads the product catalog. Listing never fails towards
// the caller: it degrades to an empty list plus a diagnostic.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/remote"
)

const (
	// PlaceholderImage is shown for products without an image.
	PlaceholderImage = "https://via.placeholder.com/800x450?text=Sin+imagen"
	// Uncategorized groups products without a category.
	Uncategorized = "sin-categoria"
	// AllCategories disables the category filter.
	AllCategories = "all"

	msgBadFormat = "Formato inesperado: la API no devolvió un arreglo"
)

var ErrProductNotFound = errors.New("product not found")

// API is the part of the remote client the catalog needs.
type API interface {
	ListProducts(ctx context.Context) remote.Result[[]domain.Product]
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, p domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	Upload(ctx context.Context, method, path string, fields map[string]string, files ...remote.File) (*remote.Response, error)
}

// Listing is the result of a catalog read. Diagnostic is set when the list
// is empty because the read failed.
type Listing struct {
	Products   []domain.Product `json:"products"`
	Diagnostic *domain.Fallback `json:"diagnostic,omitempty"`
}

type Catalog struct {
	api API
	log *slog.Logger

	mu   sync.RWMutex
	seen map[int64]domain.Product
}

func New(api API, log *slog.Logger) *Catalog {
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{
		api:  api,
		log:  log.With("component", "catalog"),
		seen: make(map[int64]domain.Product),
	}
}

func (c *Catalog) List(ctx context.Context) Listing {
	res := c.api.ListProducts(ctx)
	if !res.OK() {
		fb := res.Err.Fallback()
		if res.Kind == remote.KindParseError {
			fb.Message = msgBadFormat
		}
		c.log.WarnContext(ctx, "catalog unavailable", "code", fb.Code, "status", fb.Status, "error", fb.Message)
		return Listing{Products: []domain.Product{}, Diagnostic: fb}
	}

	products := res.Value
	if products == nil {
		products = []domain.Product{}
	}
	c.remember(products...)
	return Listing{Products: products}
}

func (c *Catalog) Get(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := c.api.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	c.remember(*p)
	return p, nil
}

// Lookup returns product data for cart lines: a fresh read when the API
// answers, otherwise the last version seen in a listing.
func (c *Catalog) Lookup(ctx context.Context, id int64) (domain.Product, error) {
	p, err := c.Get(ctx, id)
	if err == nil {
		return *p, nil
	}

	c.mu.RLock()
	cached, ok := c.seen[id]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}
	if remote.StatusOf(err) == http.StatusNotFound {
		return domain.Product{}, ErrProductNotFound
	}
	return domain.Product{}, err
}

func (c *Catalog) remember(products ...domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range products {
		c.seen[p.ID] = p
	}
}

func (c *Catalog) forget(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, id)
}

func (c *Catalog) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.Image = strings.ReplaceAll(p.Image, "`", "")
	created, err := c.api.CreateProduct(ctx, p)
	if err != nil {
		return nil, err
	}
	if created != nil {
		c.remember(*created)
	}
	return created, nil
}

func (c *Catalog) Update(ctx context.Context, id int64, p domain.Product) (*domain.Product, error) {
	p.Image = strings.ReplaceAll(p.Image, "`", "")
	updated, err := c.api.UpdateProduct(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		c.remember(*updated)
	}
	return updated, nil
}

func (c *Catalog) Delete(ctx context.Context, id int64) error {
	if err := c.api.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.forget(id)
	return nil
}

// UploadImage stores an image and returns its public URL.
func (c *Catalog) UploadImage(ctx context.Context, name string, contents io.Reader) (string, error) {
	resp, err := c.api.Upload(ctx, http.MethodPost, "/api/v1/imagenes", nil,
		remote.File{Field: "imagen", Name: name, Contents: contents})
	if err != nil {
		return "", err
	}
	u := imageURL(resp)
	if u == "" {
		return "", &remote.Error{Code: remote.CodeBadFormat, Status: resp.Status, Message: "Respuesta sin URL"}
	}
	return u, nil
}

func imageURL(resp *remote.Response) string {
	if !resp.JSON {
		return strings.TrimSpace(string(resp.Body))
	}
	var body any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return ""
	}
	switch v := body.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"url", "secure_url", "imagen"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// ResolveImage cleans a stored image reference: surrounding backticks and
// quotes are stripped, absolute URLs pass through, rooted paths are
// escaped and an empty reference yields the placeholder.
func ResolveImage(ref string) string {
	s := strings.TrimSpace(ref)
	s = strings.Trim(s, "`")
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, "'")
	switch {
	case s == "":
		return PlaceholderImage
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "data:"):
		return s
	case strings.HasPrefix(s, "/"):
		return (&url.URL{Path: s}).EscapedPath()
	default:
		return s
	}
}

// CategoryOf returns the product category, or Uncategorized.
func CategoryOf(p domain.Product) string {
	if p.Category == "" {
		return Uncategorized
	}
	return p.Category
}

// Categories lists distinct categories in first-seen order.
func Categories(products []domain.Product) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, p := range products {
		cat := CategoryOf(p)
		if !seen[cat] {
			seen[cat] = true
			out = append(out, cat)
		}
	}
	return out
}

// Filter keeps products whose name or description contains query (case
// insensitive) and whose category matches. An empty query or the
// AllCategories category do not filter.
func Filter(products []domain.Product, query, category string) []domain.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			continue
		}
		if category != "" && category != AllCategories && CategoryOf(p) != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxImageSize = 5 << 20

type ProductHandler struct {
	catalog *catalog.Catalog
}

func NewProductHandler(c *catalog.Catalog) *ProductHandler {
	return &ProductHandler{catalog: c}
}

type ProductListDTO struct {
	Products   []domain.Product `json:"products"`
	Categories []string         `json:"categories"`
	Diagnostic *domain.Fallback `json:"diagnostic,omitempty"`
}

type ProductRequestDTO struct {
	Name        string  `json:"nombre" validate:"required"`
	Description string  `json:"descripcion"`
	Category    string  `json:"tipo"`
	Price       float64 `json:"precio" validate:"gte=0"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	Image       string  `json:"imagen"`
}

func (d ProductRequestDTO) product() domain.Product {
	return domain.Product{
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Price:       d.Price,
		Stock:       d.Stock,
		Image:       d.Image,
	}
}

// ListProducts returns the catalog, optionally filtered by ?q= and
// ?category=. A failed read answers 200 with an empty list and a diagnostic.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	listing := h.catalog.List(r.Context())
	q := r.URL.Query()

	products := catalog.Filter(listing.Products, q.Get("q"), q.Get("category"))
	for i := range products {
		products[i].Image = catalog.ResolveImage(products[i].Image)
	}
	respondJSON(w, http.StatusOK, ProductListDTO{
		Products:   products,
		Categories: catalog.Categories(listing.Products),
		Diagnostic: listing.Diagnostic,
	})
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	p.Image = catalog.ResolveImage(p.Image)
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.catalog.Create(r.Context(), req.product())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req ProductRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.catalog.Update(r.Context(), id, req.product())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage forwards the multipart field "imagen" to the image endpoint.
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "expected multipart form with field imagen")
		return
	}
	file, header, err := r.FormFile("imagen")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing field imagen")
		return
	}
	defer file.Close()

	url, err := h.catalog.UploadImage(r.Context(), header.Filename, io.LimitReader(file, maxImageSize))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

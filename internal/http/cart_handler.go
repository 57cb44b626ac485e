package http

import (
	"net/http"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	cart *cart.Reconciler
}

func NewCartHandler(c *cart.Reconciler) *CartHandler {
	return &CartHandler{cart: c}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1,lte=99"`
}

type UpdateQuantityRequestDTO struct {
	// Zero or less removes the line.
	Quantity int `json:"quantity" validate:"lte=99"`
}

type CartResponseDTO struct {
	Items        []domain.CartLine `json:"items"`
	Total        float64           `json:"total"`
	TotalDisplay string            `json:"totalDisplay"`
	Count        int               `json:"count"`
	Source       domain.Source     `json:"_source"`
	Fallback     *domain.Fallback  `json:"diagnostic,omitempty"`
	// Applied is where the last mutation landed.
	Applied domain.Source `json:"applied,omitempty"`
}

func (h *CartHandler) render(w http.ResponseWriter, r *http.Request, status int, applied domain.Source) {
	cur := h.cart.CurrentCart(r.Context())
	c := cur.Value
	if c == nil {
		c = domain.NewCart(nil)
	}
	respondJSON(w, status, CartResponseDTO{
		Items:        c.Lines,
		Total:        c.Total(),
		TotalDisplay: checkout.FormatCLP(c.Total()),
		Count:        c.Count(),
		Source:       cur.Source,
		Fallback:     cur.Fallback,
		Applied:      applied,
	})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "")
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	src, err := h.cart.AddLine(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		handleError(w, err)
		return
	}
	h.render(w, r, http.StatusCreated, src)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	src, err := h.cart.SetQuantity(r.Context(), productID, req.Quantity)
	if err != nil {
		handleError(w, err)
		return
	}
	h.render(w, r, http.StatusOK, src)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	src, err := h.cart.RemoveLine(r.Context(), productID)
	if err != nil {
		handleError(w, err)
		return
	}
	h.render(w, r, http.StatusOK, src)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	src := h.cart.Clear(r.Context())
	h.render(w, r, http.StatusOK, src)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return id, true
}

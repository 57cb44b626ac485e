package http

import (
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	orders  *orders.Service
	session *session.Session
}

func NewOrdersHandler(o *orders.Service, sess *session.Session) *OrdersHandler {
	return &OrdersHandler{orders: o, session: sess}
}

type OrderStatusRequestDTO struct {
	Status string `json:"status" validate:"required"`
}

type EditResponseDTO struct {
	Message string       `json:"message"`
	Order   domain.Order `json:"order"`
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.orders.ListMine(r.Context()))
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o := h.orders.Get(r.Context(), domain.OrderID(chi.URLParam(r, "id")))
	if o == nil {
		respondError(w, http.StatusNotFound, "not_found", orders.MsgForbiddenOrAbsent)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// RequirePrivileged rejects callers whose role cannot manage orders.
func (h *OrdersHandler) RequirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !orders.CanEdit(h.session.Role(r.Context())) {
			respondError(w, http.StatusForbidden, "permission_denied", orders.MsgForbiddenOrAbsent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *OrdersHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.orders.ListAll(r.Context()))
}

func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req OrderStatusRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	status := domain.ParseOrderStatus(req.Status)
	if !status.Known() {
		respondError(w, http.StatusUnprocessableEntity, "invalid_status", orders.MsgInvalidStatus)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), domain.OrderID(chi.URLParam(r, "id")), status)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// EditOrder applies a partial edit to an order. Only changed fields are sent
// to the API.
func (h *OrdersHandler) EditOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var form orders.EditForm
	if !decodeBody(w, r, &form) {
		return
	}
	current := h.orders.Get(ctx, domain.OrderID(chi.URLParam(r, "id")))
	if current == nil {
		respondError(w, http.StatusNotFound, "not_found", orders.MsgForbiddenOrAbsent)
		return
	}

	updated, err := h.orders.Edit(ctx, current.Value, form, h.session.Role(ctx))
	switch {
	case errors.Is(err, orders.ErrNothingToUpdate):
		respondJSON(w, http.StatusOK, EditResponseDTO{Message: orders.MsgNoChanges, Order: updated})
	case err != nil:
		if domainErr(err) {
			handleError(w, err)
			return
		}
		re := remoteStatus(err)
		respondJSON(w, re, ErrorResponse{Error: orders.AdminMessage(err), Code: "update_failed"})
	default:
		respondJSON(w, http.StatusOK, EditResponseDTO{Message: orders.MsgUpdated, Order: updated})
	}
}

func domainErr(err error) bool {
	return errors.Is(err, orders.ErrNotPrivileged) ||
		errors.Is(err, orders.ErrTransitionDenied) ||
		errors.Is(err, orders.ErrInvalidStatus)
}

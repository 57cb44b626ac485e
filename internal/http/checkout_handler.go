package http

import (
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/checkout"
)

type CheckoutHandler struct {
	checkout *checkout.Service
}

func NewCheckoutHandler(s *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{checkout: s}
}

func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	flow := h.checkout.Current(r.Context())
	if flow == nil {
		handleError(w, checkout.ErrNoCheckout)
		return
	}
	respondJSON(w, http.StatusOK, flow.View())
}

// Start opens a new checkout over the current cart.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	flow, err := h.checkout.Start(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, flow.View())
}

// SaveDraft applies the form and submits it, starting a checkout first when
// none is editable.
func (h *CheckoutHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var form checkout.Form
	if !decodeJSON(w, r, &form) {
		return
	}
	ctx := r.Context()

	flow := h.checkout.Current(ctx)
	if flow == nil || !editable(flow.State()) {
		var err error
		if flow, err = h.checkout.Start(ctx); err != nil {
			handleError(w, err)
			return
		}
	}
	if err := flow.Apply(form); err != nil {
		handleError(w, err)
		return
	}
	if _, err := flow.Submit(ctx); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, flow.View())
}

func editable(s checkout.State) bool {
	return s == checkout.StateDrafting || s == checkout.StateAwaitingConfirmation
}

func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	flow := h.checkout.Current(r.Context())
	if flow == nil {
		handleError(w, checkout.ErrNoCheckout)
		return
	}
	receipt, err := flow.Confirm(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

func (h *CheckoutHandler) Retry(w http.ResponseWriter, r *http.Request) {
	flow := h.checkout.Current(r.Context())
	if flow == nil {
		handleError(w, checkout.ErrNoCheckout)
		return
	}
	if err := flow.Retry(); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, flow.View())
}

func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.checkout.Abandon(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

package http

import (
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/account"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

type SessionHandler struct {
	account *account.Service
	session *session.Session
}

func NewSessionHandler(a *account.Service, sess *session.Session) *SessionHandler {
	return &SessionHandler{account: a, session: sess}
}

type LoginRequestDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SessionResponseDTO struct {
	Authenticated bool         `json:"authenticated"`
	Role          string       `json:"role,omitempty"`
	User          *domain.User `json:"user,omitempty"`
	DisplayName   string       `json:"displayName,omitempty"`
}

func (h *SessionHandler) current(r *http.Request) SessionResponseDTO {
	ctx := r.Context()
	out := SessionResponseDTO{
		Authenticated: h.session.Authenticated(ctx),
		Role:          h.session.Role(ctx),
		User:          h.session.User(ctx),
	}
	if out.User != nil {
		out.DisplayName = out.User.DisplayName()
	}
	return out
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.current(r))
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := h.account.Login(r.Context(), req.Email, req.Password); err != nil {
		handleError(w, err)
		return
	}
	h.account.SyncPrefill(r.Context())
	respondJSON(w, http.StatusOK, h.current(r))
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.account.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	// SignUp carries its own validation and messages.
	var form account.SignUp
	if !decodeJSON(w, r, &form) {
		return
	}
	if err := h.account.Register(r.Context(), form); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

// Profile refreshes the checkout prefill and reports whether the stored
// shipping data is complete.
func (h *SessionHandler) Profile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.account.SyncPrefill(r.Context()))
}

func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if !decodeJSON(w, r, &partial) {
		return
	}
	u, err := h.account.UpdateMe(r.Context(), partial)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

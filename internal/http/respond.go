package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/account"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/remote"
	"github.com/go-playground/validator/v10"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	// Fields lists the offending form fields of a validation failure.
	Fields any `json:"fields,omitempty"`
}

var validate = validator.New()

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// decodeBody reads a JSON body into dst and runs its validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !decodeJSON(w, r, dst) {
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			respondJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "invalid request", Code: "invalid_request",
				Details: err.Error(), Fields: fields,
			})
			return false
		}
	}
	return true
}

// handleError maps service and remote errors to HTTP responses.
func handleError(w http.ResponseWriter, err error) {
	var ve *checkout.ValidationError
	var fe *account.FormError
	var ite *checkout.IllegalTransitionError
	var failed *checkout.FailedError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Completa los campos requeridos", Code: "validation_failed",
			Details: strings.Join(ve.Fields, ", "), Fields: ve.Fields,
		})
		return
	case errors.As(err, &fe):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: account.ErrRegistrationFailed.Error(), Code: "validation_failed", Fields: fe.Fields,
		})
		return
	case errors.As(err, &ite):
		respondError(w, http.StatusConflict, "illegal_transition", ite.Error())
		return
	case errors.As(err, &failed):
		respondError(w, http.StatusInternalServerError, "checkout_failed", failed.Message)
		return
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
		return
	case errors.Is(err, cart.ErrOutOfStock):
		respondError(w, http.StatusConflict, "out_of_stock", err.Error())
		return
	case errors.Is(err, cart.ErrUnknownProduct), errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, orders.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
		return
	case errors.Is(err, checkout.ErrMethodsRequired):
		respondError(w, http.StatusUnprocessableEntity, "methods_required", err.Error())
		return
	case errors.Is(err, checkout.ErrNoCheckout):
		respondError(w, http.StatusNotFound, "no_checkout", err.Error())
		return
	case errors.Is(err, checkout.ErrAbandoned):
		respondError(w, http.StatusConflict, "abandoned", err.Error())
		return
	case errors.Is(err, orders.ErrNotPrivileged):
		respondError(w, http.StatusForbidden, "permission_denied", orders.AdminMessage(err))
		return
	case errors.Is(err, orders.ErrTransitionDenied):
		respondError(w, http.StatusConflict, "transition_denied", orders.AdminMessage(err))
		return
	case errors.Is(err, orders.ErrInvalidStatus):
		respondError(w, http.StatusUnprocessableEntity, "invalid_status", orders.AdminMessage(err))
		return
	case errors.Is(err, account.ErrNoToken):
		respondError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	handleRemoteError(w, err)
}

// handleRemoteError converts a remote API failure to an HTTP status.
func handleRemoteError(w http.ResponseWriter, err error) {
	re := remote.AsError(err)

	var httpStatus int
	var code string

	switch {
	case re.Code == remote.CodeNetwork:
		httpStatus = http.StatusServiceUnavailable
		code = "service_unavailable"
	case re.Code == remote.CodeBadFormat:
		httpStatus = http.StatusBadGateway
		code = "bad_format"
	case re.Status == http.StatusUnauthorized:
		httpStatus = http.StatusUnauthorized
		code = "unauthenticated"
	case re.Status == http.StatusForbidden:
		httpStatus = http.StatusForbidden
		code = "permission_denied"
	case re.Status == http.StatusNotFound:
		httpStatus = http.StatusNotFound
		code = "not_found"
	case re.Status == http.StatusConflict:
		httpStatus = http.StatusConflict
		code = "conflict"
	case re.Status == http.StatusUnprocessableEntity, re.Status == http.StatusBadRequest:
		httpStatus = re.Status
		code = "invalid_argument"
	case re.Status == http.StatusTooManyRequests:
		httpStatus = http.StatusTooManyRequests
		code = "rate_limit_exceeded"
	default:
		httpStatus = http.StatusBadGateway
		code = "upstream_error"
	}

	respondJSON(w, httpStatus, ErrorResponse{Error: re.Message, Code: code, Details: re.Code})
}

// remoteStatus picks the response status for a failed remote call.
func remoteStatus(err error) int {
	switch st := remote.StatusOf(err); {
	case st == 0:
		return http.StatusServiceUnavailable
	case st >= 400 && st < 500:
		return st
	default:
		return http.StatusBadGateway
	}
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/remote"
)

// EditableStatuses are the statuses a privileged user may set.
var EditableStatuses = []domain.OrderStatus{
	domain.OrderStatusCart,
	domain.OrderStatusPending,
	domain.OrderStatusPaid,
	domain.OrderStatusCancelled,
}

// Messages shown for edit outcomes.
const (
	MsgUpdated           = "Orden actualizada correctamente"
	MsgTransitionDenied  = "Cambio de estado no permitido"
	MsgInvalidStatus     = "Validación: estado inválido"
	MsgForbiddenOrAbsent = "No puedes editar esta orden o no existe"
	MsgUnauthorized      = "Unauthorized"
	MsgNoChanges         = "Sin cambios"
)

var (
	ErrNotPrivileged    = errors.New("role may not edit orders")
	ErrTransitionDenied = errors.New(MsgTransitionDenied)
	ErrInvalidStatus    = errors.New(MsgInvalidStatus)
	ErrNothingToUpdate  = errors.New(MsgNoChanges)
	ErrOrderNotFound    = errors.New(MsgForbiddenOrAbsent)
)

// EditForm holds the values of the order edit form. Blank text fields mean
// "leave unchanged".
type EditForm struct {
	Status     string     `json:"status"`
	OrderedAt  *time.Time `json:"fechaPedido,omitempty"`
	Recipient  string     `json:"destinatario"`
	Address    string     `json:"direccion"`
	Region     string     `json:"region"`
	City       string     `json:"ciudad"`
	PostalCode string     `json:"codigoPostal"`
}

// CanEdit reports whether role may edit orders.
func CanEdit(role string) bool {
	role = strings.ToUpper(role)
	return role == domain.RoleAdmin || role == domain.RoleSeller
}

// CanTransition reports whether an order in status from may be set to to.
// A paid order can only stay paid or be cancelled.
func CanTransition(from, to domain.OrderStatus) bool {
	from, to = domain.ParseOrderStatus(string(from)), domain.ParseOrderStatus(string(to))
	if from == to {
		return true
	}
	if from == domain.OrderStatusPaid && to != domain.OrderStatusCancelled {
		return false
	}
	return slices.Contains(EditableStatuses, to)
}

// PlanEdit computes the partial update for form against original. Only
// changed, trimmed, non-blank fields are included.
func PlanEdit(original domain.Order, form EditForm, role string) (domain.OrderPatch, error) {
	var p domain.OrderPatch
	if !CanEdit(role) {
		return p, ErrNotPrivileged
	}

	from := domain.ParseOrderStatus(string(original.Status))
	if next := domain.ParseOrderStatus(form.Status); next != "" && next != from {
		if from == domain.OrderStatusPaid && next != domain.OrderStatusCancelled {
			return p, ErrTransitionDenied
		}
		if !slices.Contains(EditableStatuses, next) {
			return p, ErrInvalidStatus
		}
		p.Status = &next
	}

	if form.OrderedAt != nil && (original.OrderedAt == nil || !form.OrderedAt.Equal(*original.OrderedAt)) {
		t := form.OrderedAt.UTC()
		p.OrderedAt = &t
	}
	p.Recipient = changed(form.Recipient, original.Recipient)
	p.Address = changed(form.Address, original.Address)
	p.Region = changed(form.Region, original.Region)
	p.City = changed(form.City, original.City)
	p.PostalCode = changed(domain.DigitsOnly(form.PostalCode, 5), original.PostalCode)
	return p, nil
}

func changed(value, original string) *string {
	v := strings.TrimSpace(value)
	if v == "" || value == original {
		return nil
	}
	return &v
}

// Edit plans and applies a privileged edit of original.
func (s *Service) Edit(ctx context.Context, original domain.Order, form EditForm, role string) (domain.Order, error) {
	patch, err := PlanEdit(original, form, role)
	if err != nil {
		return domain.Order{}, err
	}
	if patch.IsEmpty() {
		return original, ErrNothingToUpdate
	}

	updated, err := s.UpdatePartial(ctx, original.ID, patch)
	if err != nil {
		return domain.Order{}, err
	}
	if updated.ID == "" {
		// Some deployments answer with an empty body.
		updated = original
		patch.Apply(&updated)
	}
	return updated, nil
}

// AdminMessage turns an edit failure into the message shown to the
// operator.
func AdminMessage(err error) string {
	switch {
	case err == nil:
		return MsgUpdated
	case errors.Is(err, ErrTransitionDenied), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNothingToUpdate):
		return err.Error()
	case errors.Is(err, ErrNotPrivileged):
		return MsgForbiddenOrAbsent
	}

	re := remote.AsError(err)
	switch re.Status {
	case http.StatusUnauthorized:
		return MsgUnauthorized
	case http.StatusUnprocessableEntity:
		if obj, ok := re.Data.(map[string]any); ok {
			if d, ok := obj["details"]; ok && d != nil {
				return fmt.Sprint(d)
			}
		}
		if re.Message != "" {
			return re.Message
		}
		return "Validación"
	case http.StatusConflict:
		return MsgTransitionDenied
	case http.StatusForbidden, http.StatusNotFound:
		return MsgForbiddenOrAbsent
	}
	if re.Message == "" {
		return "Error de API"
	}
	return re.Message
}

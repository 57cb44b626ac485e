// Package orders creates, confirms, lists and edits orders. Creation,
// confirmation, reads and status changes fall back to the order list kept
// in the local mirror; privileged partial edits do not.
package orders

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/mirror"
	"github.com/fjod/go_cart/storefront/internal/remote"
)

// DefaultPostalCode is stored on fallback orders created without one.
const DefaultPostalCode = "00000"

type API interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	ConfirmOrder(ctx context.Context, id domain.OrderID, reference string) (domain.Payment, error)
	GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListAllOrders(ctx context.Context) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id domain.OrderID, status domain.OrderStatus) (domain.Order, error)
	PatchOrder(ctx context.Context, id domain.OrderID, patch domain.OrderPatch) (domain.Order, error)
	PutOrder(ctx context.Context, id domain.OrderID, patch domain.OrderPatch) (domain.Order, error)
}

type Service struct {
	api    API
	mirror *mirror.Mirror
	log    *slog.Logger
	now    func() time.Time
}

func NewService(api API, m *mirror.Mirror, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{api: api, mirror: m, log: log.With("component", "orders"), now: time.Now}
}

// Create submits the order. When the API fails a PENDING order with a
// timestamp id is stored locally and returned instead; items, total and
// methods missing from req are taken from draft.
func (s *Service) Create(ctx context.Context, req domain.OrderRequest, draft *domain.OrderDraft) domain.Sourced[domain.Order] {
	o, err := s.api.CreateOrder(ctx, req)
	if err == nil {
		return domain.Remote(o)
	}

	fb := remote.FallbackOf(err)
	s.log.WarnContext(ctx, "order creation failed, storing local order", "code", fb.Code, "status", fb.Status, "error", fb.Message)

	now := s.now().UTC()
	local := domain.Order{
		ID:             domain.OrderID(strconv.FormatInt(now.UnixMilli(), 10)),
		Status:         domain.OrderStatusPending,
		Total:          req.Total,
		Items:          req.Items,
		Recipient:      req.Recipient,
		Address:        req.Address,
		Region:         req.Region,
		City:           req.City,
		PostalCode:     req.PostalCode,
		ShippingMethod: req.ShippingMethod,
		PaymentMethod:  req.PaymentMethod,
		OrderedAt:      req.OrderedAt,
		CreatedAt:      &now,
	}
	if draft != nil {
		local.Total = draft.Total
		if len(draft.Lines) > 0 {
			local.Items = domain.ItemsFromCart(draft.Lines)
		}
		if local.ShippingMethod == "" {
			local.ShippingMethod = draft.ShippingMethod
		}
		if local.PaymentMethod == "" {
			local.PaymentMethod = draft.PaymentMethod
		}
	}
	if local.Items == nil {
		local.Items = []domain.OrderItem{}
	}
	if local.PostalCode == "" {
		local.PostalCode = DefaultPostalCode
	}
	if local.OrderedAt == nil {
		local.OrderedAt = &now
	}

	s.mirror.AppendOrder(ctx, local)
	return domain.Local(local, fb)
}

// Confirm records the payment. When the API fails the local order, if any,
// is marked PAID and a local payment record is returned.
func (s *Service) Confirm(ctx context.Context, id domain.OrderID, reference string) domain.Sourced[domain.Payment] {
	p, err := s.api.ConfirmOrder(ctx, id, reference)
	if err == nil {
		return domain.Remote(p)
	}

	fb := remote.FallbackOf(err)
	s.log.WarnContext(ctx, "order confirmation failed, marking local order paid", "order_id", id, "code", fb.Code, "error", fb.Message)

	s.mirror.UpdateOrder(ctx, id, func(o *domain.Order) { o.Status = domain.OrderStatusPaid })
	return domain.Local(domain.Payment{
		ID:        strconv.FormatInt(s.now().UnixMilli(), 10),
		OrderID:   id,
		Status:    domain.OrderStatusPaid,
		Reference: reference,
	}, fb)
}

// PaymentReference builds the reference sent on confirmation.
func (s *Service) PaymentReference() string {
	return "WEB-" + strconv.FormatInt(s.now().UnixMilli(), 10)
}

// Get returns the order, or the local copy when the API fails. It returns
// nil when neither exists.
func (s *Service) Get(ctx context.Context, id domain.OrderID) *domain.Sourced[domain.Order] {
	o, err := s.api.GetOrder(ctx, id)
	if err == nil {
		res := domain.Remote(o)
		return &res
	}

	local, ok := s.mirror.FindOrder(ctx, id)
	if !ok {
		return nil
	}
	res := domain.Local(local, remote.FallbackOf(err))
	return &res
}

func (s *Service) ListMine(ctx context.Context) domain.Sourced[[]domain.Order] {
	return s.list(ctx, s.api.ListOrders)
}

// ListAll lists every order; privileged.
func (s *Service) ListAll(ctx context.Context) domain.Sourced[[]domain.Order] {
	return s.list(ctx, s.api.ListAllOrders)
}

func (s *Service) list(ctx context.Context, fetch func(context.Context) ([]domain.Order, error)) domain.Sourced[[]domain.Order] {
	orders, err := fetch(ctx)
	if err == nil {
		if orders == nil {
			orders = []domain.Order{}
		}
		return domain.Remote(orders)
	}
	s.log.WarnContext(ctx, "order listing failed, showing local orders", "error", err)
	return domain.Local(s.mirror.Orders(ctx), remote.FallbackOf(err))
}

// UpdateStatus changes the order status, patching the local copy when the
// API fails. Only editable statuses are accepted and a paid order may only
// be cancelled; the rule is checked against the current order and again
// against the local copy before it is patched.
func (s *Service) UpdateStatus(ctx context.Context, id domain.OrderID, status domain.OrderStatus) (*domain.Sourced[domain.Order], error) {
	status = domain.ParseOrderStatus(string(status))
	if !slices.Contains(EditableStatuses, status) {
		return nil, ErrInvalidStatus
	}
	current := s.Get(ctx, id)
	if current == nil {
		return nil, ErrOrderNotFound
	}
	if !CanTransition(current.Value.Status, status) {
		return nil, ErrTransitionDenied
	}

	o, err := s.api.UpdateOrderStatus(ctx, id, status)
	if err == nil {
		res := domain.Remote(o)
		return &res, nil
	}

	denied := false
	local, ok := s.mirror.UpdateOrder(ctx, id, func(o *domain.Order) {
		if !CanTransition(o.Status, status) {
			denied = true
			return
		}
		o.Status = status
	})
	if !ok {
		return nil, ErrOrderNotFound
	}
	if denied {
		return nil, ErrTransitionDenied
	}
	s.log.WarnContext(ctx, "status update failed, patched local order", "order_id", id, "status", status, "error", err)
	res := domain.Local(local, remote.FallbackOf(err))
	return &res, nil
}

// UpdatePartial sends a partial update with PATCH and retries once with PUT
// when the API does not support PATCH. Errors are returned unchanged.
func (s *Service) UpdatePartial(ctx context.Context, id domain.OrderID, patch domain.OrderPatch) (domain.Order, error) {
	o, err := s.api.PatchOrder(ctx, id, patch)
	if err == nil || !patchUnsupported(err) {
		return o, err
	}
	s.log.InfoContext(ctx, "PATCH not supported, retrying with PUT", "order_id", id)
	return s.api.PutOrder(ctx, id, patch)
}

func patchUnsupported(err error) bool {
	re := remote.AsError(err)
	return re.Status == 405 ||
		strings.Contains(re.Message, "PATCH") ||
		strings.Contains(re.Message, "not supported")
}

// Package checkout drives a purchase from cart to confirmed order. Every step
// degrades to the local mirror when the remote API is unavailable, so a
// confirmation always ends in a receipt unless the flow is abandoned or
// something unexpected escapes.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/mirror"
	"github.com/fjod/go_cart/storefront/internal/session"
)

const MsgConfirmFailed = "Error al confirmar compra"

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrMethodsRequired = errors.New("shipping and payment methods are required")
	ErrAbandoned       = errors.New("checkout abandoned")
	ErrNoCheckout      = errors.New("no checkout in progress")
)

// FailedError is returned when the confirmation ended in StateFailed.
type FailedError struct {
	Message string
	Cause   any
}

func (e *FailedError) Error() string {
	return e.Message
}

type CartSource interface {
	CurrentCart(ctx context.Context) domain.Sourced[*domain.Cart]
}

type Orders interface {
	Create(ctx context.Context, req domain.OrderRequest, draft *domain.OrderDraft) domain.Sourced[domain.Order]
	Confirm(ctx context.Context, id domain.OrderID, reference string) domain.Sourced[domain.Payment]
	PaymentReference() string
}

// Service owns the single checkout of this device.
type Service struct {
	cart    CartSource
	orders  Orders
	mirror  *mirror.Mirror
	session *session.Session
	log     *slog.Logger

	mu      sync.Mutex
	current *Flow
}

func NewService(cart CartSource, orders Orders, m *mirror.Mirror, sess *session.Session, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cart: cart, orders: orders, mirror: m, session: sess, log: log.With("component", "checkout")}
}

// Start opens a new checkout over the current cart, abandoning any previous
// one. With an empty cart the flow stays in StateEmpty and ErrEmptyCart is
// returned.
func (s *Service) Start(ctx context.Context) (*Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Abandon()
	}
	f := s.newFlow(StateEmpty)
	s.current = f

	c := s.cart.CurrentCart(ctx).Value
	if c == nil || c.IsEmpty() {
		return f, ErrEmptyCart
	}
	f.lines = c.Lines
	f.total = c.Total()
	f.form.Customer = s.prefill(ctx)
	f.moveTo(StateDrafting)
	return f, nil
}

// Current returns the checkout in progress. After a restart it resumes the
// draft persisted in the mirror. Nil when there is none.
func (s *Service) Current(ctx context.Context) *Flow {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.active.Load() {
		return s.current
	}
	draft := mirror.Get[*domain.OrderDraft](ctx, s.mirror, mirror.KeyPendingOrder, nil)
	if draft == nil {
		return nil
	}
	f := s.newFlow(StateAwaitingConfirmation)
	f.lines = draft.Lines
	f.total = draft.Total
	f.form = Form{
		Customer:       draft.Customer,
		ShippingMethod: draft.ShippingMethod,
		PaymentMethod:  draft.PaymentMethod,
		Card:           draft.Card,
	}
	f.draft = draft
	s.current = f
	s.log.InfoContext(ctx, "resumed pending checkout", "total", draft.Total, "lines", len(draft.Lines))
	return f
}

// Abandon drops the checkout in progress. Results of in-flight calls are
// discarded.
func (s *Service) Abandon(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	s.current.Abandon()
	s.current = nil
	s.mirror.Remove(ctx, mirror.KeyPendingOrder)
}

func (s *Service) newFlow(state State) *Flow {
	f := &Flow{svc: s, state: state, history: []State{state}, lines: []domain.CartLine{}}
	f.active.Store(true)
	return f
}

func (s *Service) prefill(ctx context.Context) domain.Customer {
	var c domain.Customer
	if p := mirror.Get[*domain.ShippingData](ctx, s.mirror, mirror.KeyPrefill, nil); p != nil {
		c = domain.Customer{
			Name:       p.Nombre,
			Email:      p.Email,
			Address:    p.Direccion,
			Region:     p.Region,
			Commune:    p.Ciudad,
			PostalCode: domain.DigitsOnly(p.CodigoPostal, 5),
		}
	}
	if u := s.session.User(ctx); u != nil && u.Email != "" {
		c.Email = u.Email
	}
	return c
}

// Form is the editable part of a checkout.
type Form struct {
	Customer       domain.Customer  `json:"customer"`
	ShippingMethod string           `json:"envio"`
	PaymentMethod  string           `json:"pago"`
	Card           *domain.CardData `json:"cardData,omitempty"`
}

// Flow is one checkout attempt.
type Flow struct {
	svc    *Service
	active atomic.Bool
	// run serializes operations; mu guards the fields below.
	run sync.Mutex
	mu  sync.RWMutex

	state   State
	history []State
	lines   []domain.CartLine
	total   float64
	form    Form
	draft   *domain.OrderDraft
	missing []string
	failure string
	receipt *Receipt
}

// View is a point-in-time copy of a flow.
type View struct {
	State        State              `json:"state"`
	Lines        []domain.CartLine  `json:"lines"`
	Total        float64            `json:"total"`
	TotalDisplay string             `json:"totalDisplay"`
	Form         Form               `json:"form"`
	Draft        *domain.OrderDraft `json:"draft,omitempty"`
	CanSubmit    bool               `json:"canSubmit"`
	InFlight     bool               `json:"inFlight"`
	Done         bool               `json:"done"`
	Missing      []string           `json:"missing,omitempty"`
	Failure      string             `json:"failure,omitempty"`
	Receipt      *Receipt           `json:"receipt,omitempty"`
}

func (f *Flow) View() View {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return View{
		State:        f.state,
		Lines:        f.lines,
		Total:        f.total,
		TotalDisplay: FormatCLP(f.total),
		Form:         f.form,
		Draft:        f.draft,
		CanSubmit:    f.form.ShippingMethod != "" && f.form.PaymentMethod != "",
		InFlight:     f.state.InFlight(),
		Done:         f.state.IsTerminal(),
		Missing:      f.missing,
		Failure:      f.failure,
		Receipt:      f.receipt,
	}
}

func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// History lists every state the flow went through, oldest first.
func (f *Flow) History() []State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]State, len(f.history))
	copy(out, f.history)
	return out
}

func (f *Flow) Receipt() *Receipt {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.receipt
}

func (f *Flow) Active() bool {
	return f.active.Load()
}

// Abandon marks the flow as left. Pending remote results are not applied.
func (f *Flow) Abandon() {
	f.active.Store(false)
}

func (f *Flow) moveTo(next State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = next
	f.history = append(f.history, next)
}

func (f *Flow) transition(next State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.CanTransitionTo(next) {
		return &IllegalTransitionError{From: f.state, To: next}
	}
	f.state = next
	f.history = append(f.history, next)
	return nil
}

// Apply updates the form. Shipping is applied before payment so that the
// payment choice is checked against the new shipping method. Editing a
// submitted draft moves the flow back to drafting.
func (f *Flow) Apply(form Form) error {
	f.run.Lock()
	defer f.run.Unlock()

	switch st := f.State(); st {
	case StateDrafting:
	case StateAwaitingConfirmation:
		if err := f.transition(StateDrafting); err != nil {
			return err
		}
	default:
		return &IllegalTransitionError{From: st, To: StateDrafting}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	c := form.Customer
	c.PostalCode = domain.DigitsOnly(c.PostalCode, 5)
	f.form.Customer = c
	f.setShipping(form.ShippingMethod)
	f.setPayment(form.PaymentMethod)
	if f.form.PaymentMethod == domain.PaymentCard {
		f.form.Card = form.Card
	} else {
		f.form.Card = nil
	}
	return nil
}

// setShipping applies a shipping method. Pickup forces in-store payment and
// home delivery drops it.
func (f *Flow) setShipping(method string) {
	f.form.ShippingMethod = method
	switch method {
	case domain.ShippingPickup:
		f.form.PaymentMethod = domain.PaymentInStore
	case domain.ShippingHome:
		if f.form.PaymentMethod == domain.PaymentInStore {
			f.form.PaymentMethod = ""
		}
	}
}

// setPayment applies a payment method unless it contradicts the shipping
// method, in which case the choice is ignored.
func (f *Flow) setPayment(method string) {
	if method == "" {
		return
	}
	switch f.form.ShippingMethod {
	case domain.ShippingPickup:
		if method != domain.PaymentInStore {
			return
		}
	case domain.ShippingHome:
		if method == domain.PaymentInStore {
			return
		}
	}
	f.form.PaymentMethod = method
}

// Submit freezes the form into a draft, persists it and waits for
// confirmation.
func (f *Flow) Submit(ctx context.Context) (domain.OrderDraft, error) {
	f.run.Lock()
	defer f.run.Unlock()

	f.mu.RLock()
	form, lines, total, st := f.form, f.lines, f.total, f.state
	f.mu.RUnlock()

	if st != StateDrafting {
		return domain.OrderDraft{}, &IllegalTransitionError{From: st, To: StateAwaitingConfirmation}
	}
	if form.ShippingMethod == "" || form.PaymentMethod == "" {
		return domain.OrderDraft{}, ErrMethodsRequired
	}

	draft := domain.OrderDraft{
		Lines:          lines,
		Total:          total,
		Customer:       form.Customer,
		ShippingMethod: form.ShippingMethod,
		PaymentMethod:  form.PaymentMethod,
	}
	if form.PaymentMethod == domain.PaymentCard && form.Card != nil {
		card := *form.Card
		draft.Card = &card
	}
	if err := f.transition(StateAwaitingConfirmation); err != nil {
		return domain.OrderDraft{}, err
	}

	f.mu.Lock()
	f.draft = &draft
	f.missing = nil
	f.mu.Unlock()

	f.svc.mirror.Set(ctx, mirror.KeyPendingOrder, draft)
	return draft, nil
}

// Confirm validates the draft, then creates and confirms the order. A
// *ValidationError leaves the flow awaiting confirmation without any remote
// call. Remote failures fall back to local records and still succeed.
func (f *Flow) Confirm(ctx context.Context) (rec *Receipt, err error) {
	f.run.Lock()
	defer f.run.Unlock()

	f.mu.RLock()
	st, draft := f.state, f.draft
	f.mu.RUnlock()
	if st != StateAwaitingConfirmation || draft == nil {
		return nil, &IllegalTransitionError{From: st, To: StateCreating}
	}

	defer func() {
		if r := recover(); r != nil {
			f.svc.log.ErrorContext(ctx, "checkout confirmation panicked", "panic", r)
			rec, err = nil, f.fail(r)
		}
	}()

	if verr := Validate(*draft); verr != nil {
		var ve *ValidationError
		if errors.As(verr, &ve) {
			f.mu.Lock()
			f.missing = ve.Fields
			f.mu.Unlock()
		}
		return nil, verr
	}

	if err := f.transition(StateCreating); err != nil {
		return nil, err
	}
	order := f.svc.orders.Create(ctx, draft.OrderRequest(), draft)
	if !f.active.Load() {
		return nil, ErrAbandoned
	}
	if order.IsFallback() {
		if err := f.transition(StateCreationFallback); err != nil {
			return nil, err
		}
	}
	if order.Value.ID == "" {
		return nil, f.fail(errors.New("order created without id"))
	}

	if err := f.transition(StateConfirming); err != nil {
		return nil, err
	}
	payment := f.svc.orders.Confirm(ctx, order.Value.ID, f.svc.orders.PaymentReference())
	if !f.active.Load() {
		return nil, ErrAbandoned
	}
	if payment.IsFallback() {
		if err := f.transition(StateConfirmationFallback); err != nil {
			return nil, err
		}
	}

	rec = newReceipt(*draft, order, payment)
	if err := f.transition(StateSucceeded); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.receipt = rec
	f.missing = nil
	f.mu.Unlock()

	f.svc.mirror.Remove(ctx, mirror.KeyPendingOrder)
	f.svc.mirror.Remove(ctx, mirror.KeyCart)
	f.svc.session.Bus().Publish(ctx, session.TopicCartChanged)
	f.svc.log.InfoContext(ctx, "checkout completed",
		"order_id", rec.OrderID, "order_source", order.Source, "payment_source", payment.Source)
	return rec, nil
}

func (f *Flow) fail(cause any) error {
	msg := MsgConfirmFailed
	if err, ok := cause.(error); ok && strings.TrimSpace(err.Error()) != "" {
		msg = fmt.Sprintf("%s: %v", MsgConfirmFailed, err)
	}
	f.mu.Lock()
	f.state = StateFailed
	f.history = append(f.history, StateFailed)
	f.failure = msg
	f.mu.Unlock()
	return &FailedError{Message: msg, Cause: cause}
}

// Retry returns a failed flow to awaiting confirmation with the same draft.
func (f *Flow) Retry() error {
	f.run.Lock()
	defer f.run.Unlock()

	if err := f.transition(StateAwaitingConfirmation); err != nil {
		return err
	}
	f.mu.Lock()
	f.failure = ""
	f.mu.Unlock()
	return nil
}

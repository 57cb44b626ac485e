// Package cart keeps one logical cart across two stores: the server cart of
// a signed-in user and the anonymous cart in the local mirror. With a token
// every operation is tried remotely first and falls back to the mirror on
// any failure; without a token the mirror is the only store.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/mirror"
	"github.com/fjod/go_cart/storefront/internal/remote"
	"github.com/fjod/go_cart/storefront/internal/session"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrOutOfStock      = errors.New("product out of stock")
	ErrUnknownProduct  = errors.New("product data unavailable")
)

// RemoteCart is the server cart API.
type RemoteCart interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddCartItem(ctx context.Context, productID int64, quantity int) error
	UpdateCartItem(ctx context.Context, productID int64, quantity int) error
	RemoveCartItem(ctx context.Context, productID int64) error
}

// Products resolves product data for new local lines.
type Products interface {
	Lookup(ctx context.Context, id int64) (domain.Product, error)
}

type Reconciler struct {
	remote   RemoteCart
	products Products
	mirror   *mirror.Mirror
	session  *session.Session
	log      *slog.Logger

	sfg singleflight.Group
	// mu serializes read-modify-write cycles on the mirror cart.
	mu sync.Mutex
}

func NewReconciler(rc RemoteCart, products Products, m *mirror.Mirror, sess *session.Session, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		remote:   rc,
		products: products,
		mirror:   m,
		session:  sess,
		log:      log.With("component", "cart"),
	}
}

// CurrentCart returns the server cart when signed in and reachable,
// otherwise the mirror cart annotated with the failure.
func (r *Reconciler) CurrentCart(ctx context.Context) domain.Sourced[*domain.Cart] {
	if !r.session.Authenticated(ctx) {
		return domain.Local(r.mirror.Cart(ctx), nil)
	}

	// The load is shared; one caller going away must not fail the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.sfg.Do("remote", func() (interface{}, error) {
		return r.remote.GetCart(shared)
	})
	if err != nil {
		r.log.WarnContext(ctx, "remote cart unavailable, using local cart", "error", err)
		return domain.Local(r.mirror.Cart(ctx), remote.FallbackOf(err))
	}
	// Shared between concurrent callers.
	return domain.Remote(v.(*domain.Cart).Clone())
}

// Count is the number of units in the current cart.
func (r *Reconciler) Count(ctx context.Context) int {
	return r.CurrentCart(ctx).Value.Count()
}

// AddLine adds quantity units of a product. On the local path the product
// must be known; a known stock caps the resulting quantity and an exhausted
// stock rejects the add.
func (r *Reconciler) AddLine(ctx context.Context, productID int64, quantity int) (domain.Source, error) {
	if quantity <= 0 {
		return "", ErrInvalidQuantity
	}

	return r.mutate(ctx, "add",
		func() error { return r.remote.AddCartItem(ctx, productID, quantity) },
		func(c *domain.Cart) error { return r.addLocal(ctx, c, productID, quantity) },
	)
}

func (r *Reconciler) addLocal(ctx context.Context, c *domain.Cart, productID int64, quantity int) error {
	existing, found := c.Line(productID)

	p, err := r.products.Lookup(ctx, productID)
	if err != nil {
		if !found {
			return fmt.Errorf("%w: %d: %w", ErrUnknownProduct, productID, err)
		}
		c.Add(existing, quantity)
		return nil
	}
	if p.OutOfStock() {
		return ErrOutOfStock
	}

	target := p.ClampToStock(existing.Quantity + quantity)
	if delta := target - existing.Quantity; delta != 0 {
		c.Add(p.Line(0), delta)
	}
	return nil
}

// SetQuantity replaces a line's quantity. Zero or less removes the line.
func (r *Reconciler) SetQuantity(ctx context.Context, productID int64, quantity int) (domain.Source, error) {
	quantity = max(quantity, 0)

	return r.mutate(ctx, "set",
		func() error {
			if quantity == 0 {
				return r.remote.RemoveCartItem(ctx, productID)
			}
			return r.remote.UpdateCartItem(ctx, productID, quantity)
		},
		func(c *domain.Cart) error {
			c.SetQuantity(productID, quantity)
			return nil
		},
	)
}

func (r *Reconciler) RemoveLine(ctx context.Context, productID int64) (domain.Source, error) {
	return r.mutate(ctx, "remove",
		func() error { return r.remote.RemoveCartItem(ctx, productID) },
		func(c *domain.Cart) error {
			c.Remove(productID)
			return nil
		},
	)
}

// Clear empties the cart. The mirror cart is always cleared; the server
// cart is emptied line by line and reported as local when any step fails.
func (r *Reconciler) Clear(ctx context.Context) domain.Source {
	source := domain.SourceLocal
	if r.session.Authenticated(ctx) {
		if err := r.clearRemote(ctx); err != nil {
			r.log.WarnContext(ctx, "remote clear failed, clearing local cart", "error", err)
		} else {
			source = domain.SourceRemote
		}
	}

	r.mu.Lock()
	r.mirror.SaveCart(ctx, domain.NewCart(nil))
	r.mu.Unlock()

	r.session.Bus().Publish(ctx, session.TopicCartChanged)
	return source
}

func (r *Reconciler) clearRemote(ctx context.Context) error {
	c, err := r.remote.GetCart(ctx)
	if err != nil {
		return err
	}
	for _, l := range c.Lines {
		if err := r.remote.RemoveCartItem(ctx, l.ProductID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) mutate(ctx context.Context, op string, remoteFn func() error, localFn func(*domain.Cart) error) (domain.Source, error) {
	if r.session.Authenticated(ctx) {
		err := remoteFn()
		if err == nil {
			r.session.Bus().Publish(ctx, session.TopicCartChanged)
			return domain.SourceRemote, nil
		}
		r.log.WarnContext(ctx, "remote cart mutation failed, applying locally", "op", op, "error", err)
	}

	r.mu.Lock()
	c := r.mirror.Cart(ctx)
	if err := localFn(c); err != nil {
		r.mu.Unlock()
		return "", err
	}
	r.mirror.SaveCart(ctx, c)
	r.mu.Unlock()

	r.session.Bus().Publish(ctx, session.TopicCartChanged)
	return domain.SourceLocal, nil
}

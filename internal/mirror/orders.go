package mirror

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Orders returns the locally created fallback orders.
func (m *Mirror) Orders(ctx context.Context) []domain.Order {
	return Get(ctx, m, KeyOrders, []domain.Order{})
}

// AppendOrder adds o to the fallback order list.
func (m *Mirror) AppendOrder(ctx context.Context, o domain.Order) {
	m.listMu.Lock()
	defer m.listMu.Unlock()

	orders := m.Orders(ctx)
	m.Set(ctx, KeyOrders, append(orders, o))
}

// FindOrder looks up a fallback order by id.
func (m *Mirror) FindOrder(ctx context.Context, id domain.OrderID) (domain.Order, bool) {
	for _, o := range m.Orders(ctx) {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Order{}, false
}

// UpdateOrder applies fn to the fallback order with the given id and stores
// the result. It reports whether the order existed.
func (m *Mirror) UpdateOrder(ctx context.Context, id domain.OrderID, fn func(*domain.Order)) (domain.Order, bool) {
	m.listMu.Lock()
	defer m.listMu.Unlock()

	orders := m.Orders(ctx)
	for i := range orders {
		if orders[i].ID == id {
			fn(&orders[i])
			m.Set(ctx, KeyOrders, orders)
			return orders[i], true
		}
	}
	return domain.Order{}, false
}

// Cart returns the anonymous cart. A missing or corrupted value yields an
// empty cart.
func (m *Mirror) Cart(ctx context.Context) *domain.Cart {
	lines := Get(ctx, m, KeyCart, []domain.CartLine{})
	return domain.NewCart(lines)
}

// SaveCart writes the anonymous cart in canonical form.
func (m *Mirror) SaveCart(ctx context.Context, c *domain.Cart) {
	lines := []domain.CartLine{}
	if c != nil && c.Lines != nil {
		lines = c.Lines
	}
	m.Set(ctx, KeyCart, lines)
}

package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type confirmRequest struct {
	Reference string `json:"referenciaPago"`
}

type statusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	return Call[domain.Order](ctx, c, http.MethodPost, "/api/v1/checkout", req).Unwrap()
}

func (c *Client) ConfirmOrder(ctx context.Context, id domain.OrderID, reference string) (domain.Payment, error) {
	path := fmt.Sprintf("/api/v1/checkout/%s/confirm", id)
	return Call[domain.Payment](ctx, c, http.MethodPost, path, confirmRequest{Reference: reference}).Unwrap()
}

func (c *Client) GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error) {
	return Call[domain.Order](ctx, c, http.MethodGet, orderPath(id), nil).Unwrap()
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return Call[[]domain.Order](ctx, c, http.MethodGet, "/api/v1/orders", nil).Unwrap()
}

func (c *Client) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	return Call[[]domain.Order](ctx, c, http.MethodGet, "/api/v1/orders/admin", nil).Unwrap()
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id domain.OrderID, status domain.OrderStatus) (domain.Order, error) {
	return Call[domain.Order](ctx, c, http.MethodPatch, orderPath(id), statusRequest{Status: status}).Unwrap()
}

// PatchOrder and PutOrder send a partial update with the given verb.
func (c *Client) PatchOrder(ctx context.Context, id domain.OrderID, patch domain.OrderPatch) (domain.Order, error) {
	return Call[domain.Order](ctx, c, http.MethodPatch, orderPath(id), patch).Unwrap()
}

func (c *Client) PutOrder(ctx context.Context, id domain.OrderID, patch domain.OrderPatch) (domain.Order, error) {
	return Call[domain.Order](ctx, c, http.MethodPut, orderPath(id), patch).Unwrap()
}

func orderPath(id domain.OrderID) string {
	return fmt.Sprintf("/api/v1/orders/%s", id)
}

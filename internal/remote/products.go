package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (c *Client) ListProducts(ctx context.Context) Result[[]domain.Product] {
	return Call[[]domain.Product](ctx, c, http.MethodGet, "/api/v1/productos", nil)
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return Call[*domain.Product](ctx, c, http.MethodGet, productPath(id), nil).Unwrap()
}

func (c *Client) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	return Call[*domain.Product](ctx, c, http.MethodPost, "/api/v1/productos", p).Unwrap()
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, p domain.Product) (*domain.Product, error) {
	return Call[*domain.Product](ctx, c, http.MethodPut, productPath(id), p).Unwrap()
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	_, err := c.Do(ctx, http.MethodDelete, productPath(id), nil)
	return err
}

func productPath(id int64) string {
	return fmt.Sprintf("/api/v1/productos/%d", id)
}

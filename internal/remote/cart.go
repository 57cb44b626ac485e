package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CartItem is a server-side cart line.
type CartItem struct {
	ProductID int64   `json:"productoId"`
	Name      string  `json:"nombre"`
	UnitPrice float64 `json:"precioUnitario"`
	Quantity  any     `json:"cantidad"`
	Image     string  `json:"imagen"`
}

type CartResponse struct {
	Items []CartItem `json:"items"`
}

// Cart maps the server cart into the canonical model.
func (r CartResponse) Cart() *domain.Cart {
	lines := make([]domain.CartLine, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, domain.CartLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  domain.CoerceQuantity(it.Quantity),
			ImageRef:  it.Image,
		})
	}
	return domain.NewCart(lines)
}

type cartItemRequest struct {
	ProductID int64 `json:"productoId,omitempty"`
	Quantity  int   `json:"cantidad"`
}

func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	resp, err := Call[CartResponse](ctx, c, http.MethodGet, "/api/v1/cart", nil).Unwrap()
	if err != nil {
		return nil, err
	}
	return resp.Cart(), nil
}

func (c *Client) AddCartItem(ctx context.Context, productID int64, quantity int) error {
	_, err := c.Do(ctx, http.MethodPost, "/api/v1/cart/items", cartItemRequest{ProductID: productID, Quantity: quantity})
	return err
}

func (c *Client) UpdateCartItem(ctx context.Context, productID int64, quantity int) error {
	_, err := c.Do(ctx, http.MethodPut, cartItemPath(productID), cartItemRequest{Quantity: quantity})
	return err
}

func (c *Client) RemoveCartItem(ctx context.Context, productID int64) error {
	_, err := c.Do(ctx, http.MethodDelete, cartItemPath(productID), nil)
	return err
}

func cartItemPath(productID int64) string {
	return fmt.Sprintf("/api/v1/cart/items/%d", productID)
}

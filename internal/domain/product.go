package domain

import "encoding/json"

type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"nombre"`
	Description string  `json:"descripcion"`
	Category    string  `json:"tipo"`
	Price       float64 `json:"precio"`
	Stock       *int    `json:"stock,omitempty"`
	Image       string  `json:"imagen"`
}

// UnmarshalJSON accepts the image under either "imagen" or "imagenUrl".
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var w struct {
		plain
		ImageURL string `json:"imagenUrl"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Product(w.plain)
	if p.Image == "" {
		p.Image = w.ImageURL
	}
	return nil
}

// HasStock reports whether the product carries stock information.
func (p Product) HasStock() bool {
	return p.Stock != nil
}

// OutOfStock is true only when stock is known and not positive.
func (p Product) OutOfStock() bool {
	return p.Stock != nil && *p.Stock <= 0
}

// ClampToStock limits q to the known stock; unknown stock leaves q as is.
func (p Product) ClampToStock(q int) int {
	if p.Stock == nil {
		return q
	}
	limit := max(*p.Stock, 0)
	return min(q, limit)
}

// Line builds a cart line for the product.
func (p Product) Line(quantity int) CartLine {
	return CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  quantity,
		ImageRef:  p.Image,
	}
}

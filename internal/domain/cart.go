package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CartLine is a single product entry in a cart. Quantity is always >= 1 for
// a line that is stored; zero-quantity lines are removed instead.
type CartLine struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	ImageRef  string  `json:"imageRef,omitempty"`
}

// Subtotal returns unitPrice * quantity.
func (l CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// cartLineWire accepts the canonical field names plus the legacy ones written
// by older clients (id/nombre/precio/imagen and qty instead of quantity).
type cartLineWire struct {
	ProductID *int64   `json:"productId"`
	LegacyID  *int64   `json:"id"`
	Name      string   `json:"name"`
	Nombre    string   `json:"nombre"`
	UnitPrice *float64 `json:"unitPrice"`
	Precio    *float64 `json:"precio"`
	Quantity  any      `json:"quantity"`
	Qty       any      `json:"qty"`
	ImageRef  string   `json:"imageRef"`
	Imagen    string   `json:"imagen"`
}

func (l *CartLine) UnmarshalJSON(data []byte) error {
	var w cartLineWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*l = CartLine{}
	switch {
	case w.ProductID != nil:
		l.ProductID = *w.ProductID
	case w.LegacyID != nil:
		l.ProductID = *w.LegacyID
	}
	l.Name = firstNonEmpty(w.Name, w.Nombre)
	switch {
	case w.UnitPrice != nil:
		l.UnitPrice = *w.UnitPrice
	case w.Precio != nil:
		l.UnitPrice = *w.Precio
	}
	if w.Quantity != nil {
		l.Quantity = CoerceQuantity(w.Quantity)
	} else {
		l.Quantity = CoerceQuantity(w.Qty)
	}
	l.ImageRef = firstNonEmpty(w.ImageRef, w.Imagen)
	return nil
}

// Cart is an ordered collection of lines, unique by product id.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// NewCart builds a cart from stored lines, dropping any line whose quantity
// is not positive and merging duplicates.
func NewCart(lines []CartLine) *Cart {
	c := &Cart{Lines: make([]CartLine, 0, len(lines))}
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		c.Add(l, l.Quantity)
	}
	return c
}

func (c *Cart) index(productID int64) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Line returns the line for productID.
func (c *Cart) Line(productID int64) (CartLine, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

// Add merges delta into the line for line.ProductID. A missing line is
// inserted with quantity delta; a resulting quantity <= 0 deletes the line.
func (c *Cart) Add(line CartLine, delta int) {
	i := c.index(line.ProductID)
	if i < 0 {
		if delta <= 0 {
			return
		}
		line.Quantity = delta
		c.Lines = append(c.Lines, line)
		return
	}

	c.setAt(i, c.Lines[i].Quantity+delta)
}

// SetQuantity replaces the quantity of an existing line. Quantities <= 0
// remove the line. It reports whether the line existed.
func (c *Cart) SetQuantity(productID int64, quantity int) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.setAt(i, quantity)
	return true
}

// Remove deletes the line for productID and reports whether it existed.
func (c *Cart) Remove(productID int64) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return true
}

func (c *Cart) setAt(i, quantity int) {
	if quantity <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return
	}
	c.Lines[i].Quantity = quantity
}

// Total is the sum of unitPrice * quantity over all lines.
func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

// Count is the sum of quantities; it drives the cart badge.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return &Cart{Lines: []CartLine{}}
	}
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return &Cart{Lines: lines}
}

// CoerceQuantity converts an arbitrary decoded value into a non-negative
// quantity. Anything unparseable becomes 0; fractions are truncated.
func CoerceQuantity(v any) int {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusCart       OrderStatus = "CART"
	OrderStatusCreated    OrderStatus = "CREATED"
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusFailed     OrderStatus = "FAILED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusCart:       "Carrito",
	OrderStatusCreated:    "Creada",
	OrderStatusPending:    "Pendiente",
	OrderStatusProcessing: "Procesándose",
	OrderStatusConfirmed:  "Confirmada",
	OrderStatusPaid:       "Pagada",
	OrderStatusShipped:    "Enviada",
	OrderStatusDelivered:  "Entregada",
	OrderStatusCancelled:  "Cancelada",
	OrderStatusFailed:     "Fallida",
	OrderStatusRefunded:   "Reembolsada",
}

// ParseOrderStatus normalizes case and the CANCELED spelling.
func ParseOrderStatus(s string) OrderStatus {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if st == "CANCELED" {
		return OrderStatusCancelled
	}
	return st
}

// Label is the Spanish display name; unknown statuses read "Desconocido".
// An empty status is shown as created.
func (s OrderStatus) Label() string {
	if s == "" {
		s = OrderStatusCreated
	}
	if label, ok := orderStatusLabels[ParseOrderStatus(string(s))]; ok {
		return label
	}
	return "Desconocido"
}

// Known reports whether s is one of the statuses above.
func (s OrderStatus) Known() bool {
	_, ok := orderStatusLabels[ParseOrderStatus(string(s))]
	return ok
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseOrderStatus(raw)
	return nil
}

// OrderID is an order identifier. The API may send it as a number; locally
// generated ids are decimal timestamps. Both decode to the same string form.
type OrderID string

func (id *OrderID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = OrderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = OrderID(n.String())
	return nil
}

func (id OrderID) String() string {
	return string(id)
}

// OrderItem is the wire shape of an order line.
type OrderItem struct {
	ProductID int64   `json:"productoId"`
	Name      string  `json:"nombre"`
	UnitPrice float64 `json:"precioUnitario"`
	Quantity  int     `json:"cantidad"`
}

// ItemsFromCart converts cart lines into order items.
func ItemsFromCart(lines []CartLine) []OrderItem {
	items := make([]OrderItem, len(lines))
	for i, l := range lines {
		items[i] = OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		}
	}
	return items
}

type Order struct {
	ID             OrderID     `json:"id"`
	Status         OrderStatus `json:"status"`
	Total          float64     `json:"total"`
	Items          []OrderItem `json:"items"`
	Recipient      string      `json:"destinatario,omitempty"`
	Address        string      `json:"direccion,omitempty"`
	Region         string      `json:"region,omitempty"`
	City           string      `json:"ciudad,omitempty"`
	PostalCode     string      `json:"codigoPostal,omitempty"`
	ShippingMethod string      `json:"metodoEnvio,omitempty"`
	PaymentMethod  string      `json:"metodoPago,omitempty"`
	OrderedAt      *time.Time  `json:"fechaPedido,omitempty"`
	CreatedAt      *time.Time  `json:"createdAt,omitempty"`
}

// Date returns the order date, falling back to the creation time.
func (o Order) Date() *time.Time {
	if o.OrderedAt != nil {
		return o.OrderedAt
	}
	return o.CreatedAt
}

// OrderRequest is the order-creation payload sent to the checkout endpoint.
type OrderRequest struct {
	Items          []OrderItem `json:"items"`
	Total          float64     `json:"total"`
	ShippingMethod string      `json:"metodoEnvio"`
	PaymentMethod  string      `json:"metodoPago"`
	Recipient      string      `json:"destinatario"`
	Address        string      `json:"direccion"`
	Region         string      `json:"region"`
	City           string      `json:"ciudad"`
	PostalCode     string      `json:"codigoPostal"`
	OrderedAt      *time.Time  `json:"fechaPedido,omitempty"`
}

// Payment is the result of confirming an order's payment.
type Payment struct {
	ID        string      `json:"id"`
	OrderID   OrderID     `json:"ordenId"`
	Status    OrderStatus `json:"estado"`
	Reference string      `json:"referenciaPago"`
}

// OrderPatch carries the fields of a privileged partial order update. Nil
// fields are not sent.
type OrderPatch struct {
	Status     *OrderStatus `json:"status,omitempty"`
	OrderedAt  *time.Time   `json:"fechaPedido,omitempty"`
	Recipient  *string      `json:"destinatario,omitempty"`
	Address    *string      `json:"direccion,omitempty"`
	Region     *string      `json:"region,omitempty"`
	City       *string      `json:"ciudad,omitempty"`
	PostalCode *string      `json:"codigoPostal,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p OrderPatch) IsEmpty() bool {
	return p.Status == nil && p.OrderedAt == nil && p.Recipient == nil &&
		p.Address == nil && p.Region == nil && p.City == nil && p.PostalCode == nil
}

// Apply copies the set fields of p onto o.
func (p OrderPatch) Apply(o *Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.OrderedAt != nil {
		t := *p.OrderedAt
		o.OrderedAt = &t
	}
	if p.Recipient != nil {
		o.Recipient = *p.Recipient
	}
	if p.Address != nil {
		o.Address = *p.Address
	}
	if p.Region != nil {
		o.Region = *p.Region
	}
	if p.City != nil {
		o.City = *p.City
	}
	if p.PostalCode != nil {
		o.PostalCode = *p.PostalCode
	}
}

package domain

// Shipping and payment methods offered at checkout.
const (
	ShippingHome   = "domicilio"
	ShippingPickup = "retiro"

	PaymentCard       = "tarjeta"
	PaymentOnDelivery = "contraentrega"
	PaymentInStore    = "local"
)

type Customer struct {
	Name       string `json:"nombre"`
	Email      string `json:"email"`
	Address    string `json:"direccion"`
	Region     string `json:"region"`
	Commune    string `json:"comuna"`
	PostalCode string `json:"codigoPostal"`
}

type CardData struct {
	Holder string `json:"nombre"`
	Number string `json:"numero"`
	Expiry string `json:"exp"`
	CVV    string `json:"cvv"`
}

// OrderDraft is an unconfirmed order composed from the cart and the checkout
// form. It lives in the local mirror until it is confirmed or abandoned.
type OrderDraft struct {
	Lines          []CartLine `json:"items"`
	Total          float64    `json:"total"`
	Customer       Customer   `json:"customer"`
	ShippingMethod string     `json:"envio"`
	PaymentMethod  string     `json:"pago"`
	Card           *CardData  `json:"cardData,omitempty"`
}

// OrderRequest builds the order-creation payload from the draft.
func (d OrderDraft) OrderRequest() OrderRequest {
	return OrderRequest{
		Items:          ItemsFromCart(d.Lines),
		Total:          d.Total,
		ShippingMethod: d.ShippingMethod,
		PaymentMethod:  d.PaymentMethod,
		Recipient:      d.Customer.Name,
		Address:        d.Customer.Address,
		Region:         d.Customer.Region,
		City:           d.Customer.Commune,
		PostalCode:     DigitsOnly(d.Customer.PostalCode, 5),
	}
}

// DigitsOnly strips every non-digit rune and truncates to max digits when
// max > 0.
func DigitsOnly(s string, max int) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
			if max > 0 && len(out) == max {
				break
			}
		}
	}
	return string(out)
}

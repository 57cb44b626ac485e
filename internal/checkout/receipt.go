package checkout

import (
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Prices include 19% VAT.
var vatFactor = decimal.RequireFromString("1.19")

// Receipt is what the success view shows.
type Receipt struct {
	OrderID      domain.OrderID                 `json:"orderId"`
	Order        domain.Sourced[domain.Order]   `json:"order"`
	Payment      domain.Sourced[domain.Payment] `json:"payment"`
	Lines        []domain.CartLine              `json:"lines"`
	Total        float64                        `json:"total"`
	Net          int64                          `json:"net"`
	Tax          int64                          `json:"tax"`
	TotalDisplay string                         `json:"totalDisplay"`
	NetDisplay   string                         `json:"netDisplay"`
	TaxDisplay   string                         `json:"taxDisplay"`
	Alerts       []string                       `json:"alerts"`
}

// Fallback reports whether any step of the order was stored only locally.
func (r Receipt) Fallback() bool {
	return r.Order.IsFallback() || r.Payment.IsFallback()
}

func newReceipt(d domain.OrderDraft, order domain.Sourced[domain.Order], payment domain.Sourced[domain.Payment]) *Receipt {
	net, tax := SplitVAT(d.Total)
	id := order.Value.ID
	if id == "" {
		id = payment.Value.OrderID
	}
	r := &Receipt{
		OrderID:      id,
		Order:        order,
		Payment:      payment,
		Lines:        d.Lines,
		Total:        d.Total,
		Net:          net,
		Tax:          tax,
		TotalDisplay: FormatCLP(d.Total),
		NetDisplay:   FormatCLP(float64(net)),
		TaxDisplay:   FormatCLP(float64(tax)),
		Alerts:       []string{},
	}
	if fb := order.Fallback; fb != nil {
		r.Alerts = append(r.Alerts, fmt.Sprintf(
			"No se pudo registrar la orden en backend (código %s, estado %d). Se guardó localmente.", fb.Code, fb.Status))
	}
	if fb := payment.Fallback; fb != nil {
		r.Alerts = append(r.Alerts, fmt.Sprintf(
			"No se pudo confirmar el pago en backend (código %s, estado %d). Se marcó pagado localmente.", fb.Code, fb.Status))
	}
	return r
}

// SplitVAT splits a VAT-inclusive total into net (rounded) and tax.
func SplitVAT(total float64) (net, tax int64) {
	t := decimal.NewFromFloat(total)
	n := t.Div(vatFactor).Round(0)
	tx := t.Sub(n).Round(0)
	if tx.IsNegative() {
		tx = decimal.Zero
	}
	return n.IntPart(), tx.IntPart()
}

// FormatCLP renders an amount the way es-CL displays pesos: "$1.234.567",
// with up to three decimals after a comma.
func FormatCLP(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(3)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	whole := d.Truncate(0)
	digits := whole.String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := sign + "$" + b.String()
	if frac := d.Sub(whole); !frac.IsZero() {
		s := strings.TrimRight(frac.StringFixed(3), "0")
		out += "," + strings.TrimPrefix(s, "0.")
	}
	return out
}

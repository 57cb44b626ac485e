package checkout

import (
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestFormatCLP(t *testing.T) {
	cases := map[float64]string{
		0:         "$0",
		999:       "$999",
		1000:      "$1.000",
		1234567:   "$1.234.567",
		-15000:    "-$15.000",
		1000.5:    "$1.000,5",
		12.125:    "$12,125",
		100000000: "$100.000.000",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatCLP(in), "amount %v", in)
	}
}

func TestSplitVAT(t *testing.T) {
	net, tax := SplitVAT(1000)
	assert.Equal(t, int64(840), net)
	assert.Equal(t, int64(160), tax)

	net, tax = SplitVAT(0)
	assert.Zero(t, net)
	assert.Zero(t, tax)

	net, tax = SplitVAT(11900)
	assert.Equal(t, int64(10000), net)
	assert.Equal(t, int64(1900), tax)
}

func TestValidate_EmailShapeAndPostalCode(t *testing.T) {
	d := domain.OrderDraft{
		Customer: domain.Customer{
			Name: "Ana", Email: "ana@correo", Address: "Calle 1", Region: "RM", Commune: "Maipú", PostalCode: "1234",
		},
		ShippingMethod: domain.ShippingHome,
		PaymentMethod:  domain.PaymentOnDelivery,
	}

	err := Validate(d)

	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"Email", "Código Postal (5 dígitos)"}, ve.Fields)

	d.Customer.Email = "ana@correo.cl"
	d.Customer.PostalCode = "12345"
	assert.NoError(t, Validate(d))
}

func TestValidate_WhitespaceCountsAsMissing(t *testing.T) {
	d := domain.OrderDraft{
		Customer: domain.Customer{
			Name: "   ", Email: "a@b.cl", Address: "Calle 1", Region: "RM", Commune: "X", PostalCode: "12345",
		},
		ShippingMethod: domain.ShippingPickup,
		PaymentMethod:  domain.PaymentInStore,
	}

	var ve *ValidationError
	assert.ErrorAs(t, Validate(d), &ve)
	assert.Equal(t, []string{"Nombre completo"}, ve.Fields)
}

func TestState_Transitions(t *testing.T) {
	assert.True(t, StateEmpty.CanTransitionTo(StateDrafting))
	assert.False(t, StateEmpty.CanTransitionTo(StateCreating))
	assert.True(t, StateFailed.CanTransitionTo(StateAwaitingConfirmation))
	assert.False(t, StateSucceeded.CanTransitionTo(StateDrafting))
	assert.True(t, StateSucceeded.IsTerminal())
	assert.True(t, StateConfirming.InFlight())
	assert.False(t, StateDrafting.InFlight())
}

package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-playground/validator/v10"
)

var (
	emailShape  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	postalShape = regexp.MustCompile(`^\d{5}$`)
)

// gateInput lists the checked fields in the order their labels are reported.
type gateInput struct {
	Name           string `label:"Nombre completo" validate:"required"`
	Email          string `label:"Email" validate:"email_shape"`
	Address        string `label:"Dirección de envío" validate:"required"`
	Region         string `label:"Región" validate:"required"`
	Commune        string `label:"Comuna" validate:"required"`
	PostalCode     string `label:"Código Postal (5 dígitos)" validate:"postal_cl"`
	ShippingMethod string `label:"Método de envío" validate:"required"`
	PaymentMethod  string `label:"Método de pago" validate:"required"`
	CardHolder     string `label:"Nombre en tarjeta" validate:"required_if=PaymentMethod tarjeta"`
	CardNumber     string `label:"Número de tarjeta" validate:"required_if=PaymentMethod tarjeta"`
	CardExpiry     string `label:"Expiración" validate:"required_if=PaymentMethod tarjeta"`
	CardCVV        string `label:"CVV" validate:"required_if=PaymentMethod tarjeta"`
}

var gate = newGate()

func newGate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("label")
	})
	_ = v.RegisterValidation("email_shape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("postal_cl", func(fl validator.FieldLevel) bool {
		return postalShape.MatchString(fl.Field().String())
	})
	return v
}

// ValidationError lists the labels of every missing or invalid field.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "faltan o son inválidos: " + strings.Join(e.Fields, ", ")
}

// Validate runs the confirmation gate over a draft. Every failing field is
// reported, in form order.
func Validate(d domain.OrderDraft) error {
	in := gateInput{
		Name:           strings.TrimSpace(d.Customer.Name),
		Email:          strings.TrimSpace(d.Customer.Email),
		Address:        strings.TrimSpace(d.Customer.Address),
		Region:         strings.TrimSpace(d.Customer.Region),
		Commune:        strings.TrimSpace(d.Customer.Commune),
		PostalCode:     strings.TrimSpace(d.Customer.PostalCode),
		ShippingMethod: strings.TrimSpace(d.ShippingMethod),
		PaymentMethod:  strings.TrimSpace(d.PaymentMethod),
	}
	if d.Card != nil {
		in.CardHolder = strings.TrimSpace(d.Card.Holder)
		in.CardNumber = strings.TrimSpace(d.Card.Number)
		in.CardExpiry = strings.TrimSpace(d.Card.Expiry)
		in.CardCVV = strings.TrimSpace(d.Card.CVV)
	}

	err := gate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Fields: make([]string, 0, len(verrs))}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, fe.Field())
	}
	return ve
}

package account

import (
	"errors"
	"reflect"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-playground/validator/v10"
)

// SignUp is the registration form.
type SignUp struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	Confirm      string `json:"confirmar" validate:"eqfield=Password"`
	Apellido     string `json:"apellido"`
	Telefono     string `json:"telefono" validate:"omitempty,numeric,min=8,max=12"`
	Direccion    string `json:"direccion" validate:"omitempty,min=5"`
	Region       string `json:"region"`
	Ciudad       string `json:"ciudad"`
	CodigoPostal string `json:"codigoPostal" validate:"omitempty,len=5,numeric"`
}

var signUpMessages = map[string]string{
	"name":         "Nombre requerido",
	"email":        "Correo inválido",
	"password":     "Contraseña inválida",
	"confirmar":    "Las contraseñas no coinciden",
	"telefono":     "Teléfono inválido",
	"direccion":    "Dirección demasiado corta",
	"codigoPostal": "Código postal debe tener 5 dígitos",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return v
}

// FormError maps form fields to their messages.
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	return "formulario inválido"
}

// Normalize trims text fields and reduces the postal code to its digits.
func (f *SignUp) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Apellido = strings.TrimSpace(f.Apellido)
	f.Telefono = strings.TrimSpace(f.Telefono)
	f.Direccion = strings.TrimSpace(f.Direccion)
	f.CodigoPostal = domain.DigitsOnly(f.CodigoPostal, 5)
}

func (f SignUp) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := &FormError{Fields: make(map[string]string, len(verrs))}
	for _, v := range verrs {
		fe.Fields[v.Field()] = signUpMessages[v.Field()]
	}
	return fe
}

// Registration builds the API payload; blank optional fields are sent as
// null and every new account gets the USER role.
func (f SignUp) Registration() domain.Registration {
	return domain.Registration{
		Email:        f.Email,
		Password:     f.Password,
		Nombre:       f.Name,
		Apellido:     optional(f.Apellido),
		Telefono:     optional(f.Telefono),
		Direccion:    optional(f.Direccion),
		Region:       optional(f.Region),
		Ciudad:       optional(f.Ciudad),
		CodigoPostal: optional(f.CodigoPostal),
		Role:         domain.RoleUser,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Roles known to the storefront.
const (
	RoleUser   = "USER"
	RoleAdmin  = "ADMIN"
	RoleSeller = "VENDEDOR"
)

// ShippingData is the customer's stored shipping profile. The API sends it
// either flat or nested under "profile", with numbers for some fields.
type ShippingData struct {
	Nombre       string `json:"nombre"`
	Apellido     string `json:"apellido"`
	Telefono     string `json:"telefono"`
	Direccion    string `json:"direccion"`
	Region       string `json:"region"`
	Ciudad       string `json:"ciudad"`
	CodigoPostal string `json:"codigoPostal"`
	Email        string `json:"email,omitempty"`
}

var shippingRequired = []string{"nombre", "apellido", "telefono", "direccion", "region", "ciudad", "codigoPostal"}

func (s *ShippingData) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	nested, _ := raw["profile"].(map[string]any)
	get := func(key string) string {
		if v := textOf(raw[key]); v != "" {
			return v
		}
		return textOf(nested[key])
	}
	*s = ShippingData{
		Nombre:       get("nombre"),
		Apellido:     get("apellido"),
		Telefono:     get("telefono"),
		Direccion:    get("direccion"),
		Region:       get("region"),
		Ciudad:       get("ciudad"),
		CodigoPostal: get("codigoPostal"),
		Email:        get("email"),
	}
	return nil
}

func (s ShippingData) field(key string) string {
	switch key {
	case "nombre":
		return s.Nombre
	case "apellido":
		return s.Apellido
	case "telefono":
		return s.Telefono
	case "direccion":
		return s.Direccion
	case "region":
		return s.Region
	case "ciudad":
		return s.Ciudad
	case "codigoPostal":
		return s.CodigoPostal
	}
	return ""
}

// Complete reports whether every field needed to ship is filled in.
func (s ShippingData) Complete() bool {
	for _, key := range shippingRequired {
		if strings.TrimSpace(s.field(key)) == "" {
			return false
		}
	}
	return true
}

type User struct {
	ID      int64         `json:"id,omitempty"`
	Email   string        `json:"email"`
	Role    string        `json:"role,omitempty"`
	Profile *ShippingData `json:"profile,omitempty"`
}

// UnmarshalJSON also accepts the role nested as user.role.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var w struct {
		plain
		Nested *struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*u = User(w.plain)
	if u.Role == "" && w.Nested != nil {
		u.Role = w.Nested.Role
	}
	return nil
}

// DisplayName is the full profile name, or the email without a profile.
func (u User) DisplayName() string {
	if u.Profile != nil && u.Profile.Nombre != "" {
		if u.Profile.Apellido != "" {
			return u.Profile.Nombre + " " + u.Profile.Apellido
		}
		return u.Profile.Nombre
	}
	return u.Email
}

// Prefill derives checkout prefill data from the user snapshot. It returns
// nil when the user has no profile.
func (u User) Prefill() *ShippingData {
	if u.Profile == nil {
		return nil
	}
	p := *u.Profile
	p.Email = u.Email
	return &p
}

// Registration is the sign-up payload.
type Registration struct {
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	Nombre       string  `json:"nombre"`
	Apellido     *string `json:"apellido"`
	Telefono     *string `json:"telefono"`
	Direccion    *string `json:"direccion"`
	Region       *string `json:"region"`
	Ciudad       *string `json:"ciudad"`
	CodigoPostal *string `json:"codigoPostal"`
	Role         string  `json:"role"`
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

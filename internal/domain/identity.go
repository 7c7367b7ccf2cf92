package domain

import (
	"encoding/json"
	"time"
)

// Identity is a registered account as stored in the directory.
type Identity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
	Profile   Profile   `json:"profile"`
}

// Profile holds the per-account sub-records.
type Profile struct {
	Addresses   []Address         `json:"addresses"`
	Orders      []json.RawMessage `json:"orders"`
	Preferences map[string]any    `json:"preferences"`
}

// NewProfile returns a profile with empty, non-nil collections.
func NewProfile() Profile {
	return Profile{
		Addresses:   []Address{},
		Orders:      []json.RawMessage{},
		Preferences: map[string]any{},
	}
}

// Normalized fills nil collections so the profile always serializes as
// empty lists and an empty object.
func (p Profile) Normalized() Profile {
	if p.Addresses == nil {
		p.Addresses = []Address{}
	}
	if p.Orders == nil {
		p.Orders = []json.RawMessage{}
	}
	if p.Preferences == nil {
		p.Preferences = map[string]any{}
	}
	return p
}

// Address is a saved shipping address. Addresses are append-only.
type Address struct {
	ID         string    `json:"id"`
	Label      string    `json:"label,omitempty"`
	Line1      string    `json:"line1,omitempty"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city,omitempty"`
	State      string    `json:"state,omitempty"`
	PostalCode string    `json:"postalCode,omitempty"`
	Country    string    `json:"country,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AddressInput carries the caller-supplied address fields.
type AddressInput struct {
	Label      string `json:"label"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// ToAddress stamps the input with an id and creation time.
func (in AddressInput) ToAddress(id string, createdAt time.Time) Address {
	return Address{
		ID:         id,
		Label:      in.Label,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		State:      in.State,
		PostalCode: in.PostalCode,
		Country:    in.Country,
		Phone:      in.Phone,
		CreatedAt:  createdAt,
	}
}

// ProfileUpdate is a partial update. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name        *string            `json:"name,omitempty"`
	Email       *string            `json:"email,omitempty"`
	Phone       *string            `json:"phone,omitempty"`
	Password    *string            `json:"password,omitempty"`
	Addresses   *[]Address         `json:"addresses,omitempty"`
	Orders      *[]json.RawMessage `json:"orders,omitempty"`
	Preferences map[string]any     `json:"preferences,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil && u.Password == nil &&
		u.Addresses == nil && u.Orders == nil && u.Preferences == nil
}

// ApplyTo merges the set fields into id.
func (u ProfileUpdate) ApplyTo(id *Identity) {
	if u.Name != nil {
		id.Name = *u.Name
	}
	if u.Email != nil {
		id.Email = *u.Email
	}
	if u.Phone != nil {
		id.Phone = *u.Phone
	}
	if u.Password != nil {
		id.Password = *u.Password
	}
	if u.Addresses != nil {
		id.Profile.Addresses = *u.Addresses
	}
	if u.Orders != nil {
		id.Profile.Orders = *u.Orders
	}
	if u.Preferences != nil {
		id.Profile.Preferences = u.Preferences
	}
}

// ApplyToSession merges the fields a session copy carries.
func (u ProfileUpdate) ApplyToSession(s *Session) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Email != nil {
		s.Email = *u.Email
	}
}

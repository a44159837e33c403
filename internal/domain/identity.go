package domain

import (
	"strings"
)

// identityKeySeparator cannot appear in sanitized form input, so joined
// components never collide ("ann b"+"x" vs "ann"+"b x").
const identityKeySeparator = "\x1f"

// Identity is the (first name, last name, email) tuple that identifies a person.
// Email alone is not unique: family members often share one inbox.
// swagger:model Identity
type Identity struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// IdentityKey is the normalized composite of an Identity, usable as a map or index key.
type IdentityKey string

// Normalize lower-cases and trims s. Used only for comparison, never for display.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeArea returns the canonical form of an area code ("c " and "C" are the same area).
func NormalizeArea(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Complete reports whether the identity can be matched. A blank first or last
// name never matches anything.
func (i Identity) Complete() bool {
	return Normalize(i.FirstName) != "" && Normalize(i.LastName) != ""
}

// Key returns the normalized identity key, or ErrIdentityIncomplete when a name
// component is blank.
func (i Identity) Key() (IdentityKey, error) {
	if !i.Complete() {
		return "", ErrIdentityIncomplete
	}
	return IdentityKey(Normalize(i.FirstName) + identityKeySeparator +
		Normalize(i.LastName) + identityKeySeparator +
		Normalize(i.Email)), nil
}

// String renders the identity for logs and error messages.
func (i Identity) String() string {
	name := strings.TrimSpace(strings.TrimSpace(i.FirstName) + " " + strings.TrimSpace(i.LastName))
	if e := strings.TrimSpace(i.Email); e != "" {
		return name + " <" + e + ">"
	}
	return name
}

// SameIdentity reports whether a and b are the same person. Incomplete
// identities are never the same as anything, including each other.
func SameIdentity(a, b Identity) bool {
	ka, err := a.Key()
	if err != nil {
		return false
	}
	kb, err := b.Key()
	if err != nil {
		return false
	}
	return ka == kb
}

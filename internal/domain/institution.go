// Package domain provides domain models for the institution collaboration graph service.
package domain

import (
	"strings"
)

// openAlexIDPrefix is the URL prefix OpenAlex uses for entity IDs.
const openAlexIDPrefix = "https://openalex.org/"

// Institution is one row of the roster.
// Identity is the catalog ID alone; every other field is descriptive.
type Institution struct {
	// ID is the catalog identifier as the catalog returned it, usually
	// "https://openalex.org/I136199984". Empty when unresolved.
	ID string `json:"openalex_id" validate:"omitempty,max=256"`

	// Name is the free-text name from the roster file.
	Name string `json:"name" validate:"required"`

	// State is an optional locale attribute passed through unchanged.
	State string `json:"state"`

	// ShortLabel is an optional display label passed through unchanged.
	ShortLabel string `json:"short_label"`

	// DisplayName is the catalog's display name for the resolved ID.
	DisplayName string `json:"openalex_display_name"`

	// CountryCode and Type come from the catalog match, when resolved.
	CountryCode string `json:"-"`
	Type        string `json:"-"`
}

// Key returns the identity key of the institution. URL and short forms of
// the same ID share a key.
func (i Institution) Key() string {
	return NormalizeInstitutionID(i.ID)
}

// SameAs reports whether two institutions have the same catalog identity.
// Unresolved institutions are never the same as anything.
func (i Institution) SameAs(other Institution) bool {
	return SameInstitutionID(i.ID, other.ID)
}

// IsResolved reports whether the institution carries a catalog identifier.
func (i Institution) IsResolved() bool {
	return i.ID != ""
}

// NormalizeInstitutionID strips the OpenAlex URL prefix and surrounding whitespace
// so that "https://openalex.org/I123" and "I123" compare equal. The result is a
// comparison key; stored and emitted IDs keep the catalog's form.
func NormalizeInstitutionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	id = strings.TrimPrefix(id, openAlexIDPrefix)
	id = strings.TrimPrefix(id, "http://openalex.org/")
	return strings.TrimSpace(id)
}

// SameInstitutionID reports whether a and b name the same catalog institution
// in either URL or short form. Empty IDs never match.
func SameInstitutionID(a, b string) bool {
	key := NormalizeInstitutionID(a)
	return key != "" && key == NormalizeInstitutionID(b)
}

// InstitutionIDForms returns the short and URL forms of id, in that order.
// It returns nil for an empty id.
func InstitutionIDForms(id string) []string {
	key := NormalizeInstitutionID(id)
	if key == "" {
		return nil
	}
	return []string{key, openAlexIDPrefix + key}
}

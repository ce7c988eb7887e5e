package domain

import "fmt"

// CollaborationPair is an unordered pair of two distinct institution IDs.
// A canonical pair always has A < B, so (x, y) and (y, x) produce the same value.
type CollaborationPair struct {
	A string
	B string
}

// NewPair builds the canonical pair for two institution IDs.
// It returns ErrSelfPair when both IDs are equal and a ValidationError when either is empty.
func NewPair(x, y string) (CollaborationPair, error) {
	if x == "" || y == "" {
		return CollaborationPair{}, NewValidationError("institution_id", "pair members must not be empty")
	}
	if x == y {
		return CollaborationPair{}, fmt.Errorf("%w: %s", ErrSelfPair, x)
	}
	if y < x {
		x, y = y, x
	}
	return CollaborationPair{A: x, B: y}, nil
}

// Canonical returns the pair with its members sorted. Applying it to an already
// canonical pair returns the pair unchanged.
func (p CollaborationPair) Canonical() CollaborationPair {
	if p.B < p.A {
		return CollaborationPair{A: p.B, B: p.A}
	}
	return p
}

// Contains reports whether id is one of the pair members.
func (p CollaborationPair) Contains(id string) bool {
	return p.A == id || p.B == id
}

// String renders the pair as "A|B".
func (p CollaborationPair) String() string {
	return p.A + "|" + p.B
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by stores and the reconciliation engine.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")

	// ErrIdentityIncomplete is returned when first or last name is blank and the record cannot be matched.
	ErrIdentityIncomplete = errors.New("identity incomplete")
	// ErrIdentityNotFound is returned when no active record matches an identity.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrAmbiguousIdentity is returned when more than one active record matches an identity.
	ErrAmbiguousIdentity = errors.New("ambiguous identity")
	// ErrAreaAlreadyLed is returned when promoting someone who already leads a different area.
	ErrAreaAlreadyLed = errors.New("already leads another area")
	// ErrSameArea is returned when a reassignment targets the participant's current area.
	ErrSameArea = errors.New("participant is already in that area")
	// ErrDuplicateIdentity is returned when a write would create a second active record for one identity.
	ErrDuplicateIdentity = errors.New("duplicate identity")
	// ErrRecordRemoved is returned when editing a soft-deleted record.
	ErrRecordRemoved = errors.New("record removed")
	// ErrStaleRecord is returned when a record changed between read and write.
	ErrStaleRecord = errors.New("record modified concurrently")
)

// AreaAlreadyLedError reports which area an identity already leads.
// It matches ErrAreaAlreadyLed with errors.Is.
type AreaAlreadyLedError struct {
	Identity Identity
	Area     string
}

func (e *AreaAlreadyLedError) Error() string {
	return fmt.Sprintf("%s already leads area %s", e.Identity, e.Area)
}

func (e *AreaAlreadyLedError) Is(target error) bool {
	return target == ErrAreaAlreadyLed
}

// AmbiguousIdentityError lists the ids of the active records sharing one identity.
// It matches ErrAmbiguousIdentity with errors.Is.
type AmbiguousIdentityError struct {
	Identity Identity
	IDs      []string
}

func (e *AmbiguousIdentityError) Error() string {
	return fmt.Sprintf("%d active records match %s: %s", len(e.IDs), e.Identity, strings.Join(e.IDs, ", "))
}

func (e *AmbiguousIdentityError) Is(target error) bool {
	return target == ErrAmbiguousIdentity
}

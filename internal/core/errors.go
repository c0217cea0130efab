package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrInvalidRequest   = errors.New("invalid request")
	// ErrImportBusy is returned when no import slot frees up in time.
	ErrImportBusy = errors.New("too many concurrent imports, please try again later")
	// ErrStoreUnavailable is returned by health checks when the store does not answer.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Entities named by NotFoundError.
const (
	EntityMember       = "member"
	EntityItem         = "item"
	EntityMemberOrItem = "member or item"
	EntityBooking      = "booking"
	EntityImportRun    = "import run"
)

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
	}
	return e.Entity + " not found"
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Capacity scopes.
const (
	ScopeMember = "member"
	ScopeItem   = "item"
)

// CapacityExceededError reports a member at its booking limit or an item
// with no remaining stock.
type CapacityExceededError struct {
	Scope string
	ID    int64
	Limit int
}

func (e *CapacityExceededError) Error() string {
	if e.Scope == ScopeMember {
		return fmt.Sprintf("member %d has reached the maximum of %d bookings", e.ID, e.Limit)
	}
	return fmt.Sprintf("item %d has no remaining stock", e.ID)
}

func (e *CapacityExceededError) Is(target error) bool { return target == ErrCapacityExceeded }

// SourceNotFoundError reports a missing import source file.
type SourceNotFoundError struct {
	Source string
}

func (e *SourceNotFoundError) Error() string { return e.Source + " not found" }

// DateFormatError is the row-level parse failure for a date cell that
// matches none of the accepted layouts.
type DateFormatError struct {
	Field string
	Value string
}

func (e *DateFormatError) Error() string {
	prefix := ""
	if e.Field != "" {
		prefix = e.Field + ": "
	}
	return fmt.Sprintf("%sunsupported date format: %q, expected YYYY-MM-DDThh:mm:ss or DD/MM/YYYY", prefix, e.Value)
}

// ImportFailedError wraps any failure that aborted an import after the
// sources were found. Nothing from the run is committed.
type ImportFailedError struct {
	Err error
}

func (e *ImportFailedError) Error() string { return "import failed: " + e.Err.Error() }

func (e *ImportFailedError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

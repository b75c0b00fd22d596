package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the registries, the engine and the adapters.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate key")
	ErrConflict   = errors.New("schedule conflict")
	ErrBlocked    = errors.New("operation blocked")
)

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Is matches ErrValidation.
func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateError reports an insert whose key already exists. It also matches
// ErrValidation since duplicates are rejected as invalid input.
type DuplicateError struct {
	Entity EntityType
	ID     string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.ID)
}

// Is matches ErrDuplicate and ErrValidation.
func (e DuplicateError) Is(target error) bool {
	return target == ErrDuplicate || target == ErrValidation
}

// ConflictError reports that an aircraft is not available for a window.
type ConflictError struct {
	Aircraft    string
	Conflicting []string
}

func (e ConflictError) Error() string {
	if len(e.Conflicting) == 0 {
		return fmt.Sprintf("aircraft %s is not available", e.Aircraft)
	}
	return fmt.Sprintf("aircraft %s is not available: overlaps %s", e.Aircraft, strings.Join(e.Conflicting, ", "))
}

// Is matches ErrConflict and ErrValidation.
func (e ConflictError) Is(target error) bool {
	return target == ErrConflict || target == ErrValidation
}

// BlockCause classifies why a status operation was refused.
type BlockCause string

// Block causes.
const (
	CausePhysicalOccupancy  BlockCause = "physical_occupancy"
	CauseTerminalState      BlockCause = "terminal_state"
	CauseSequence           BlockCause = "sequence"
	CauseInvalidTransition  BlockCause = "invalid_transition"
	CauseAircraftReferenced BlockCause = "aircraft_referenced"
)

// BlockedError is returned when an operation is refused by a domain check.
// Conflicting names the flight responsible when there is one.
type BlockedError struct {
	Flight      string
	Cause       BlockCause
	Conflicting string
	Detail      string
}

func (e BlockedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s blocked (%s)", e.Flight, e.Cause)
	if e.Conflicting != "" {
		fmt.Fprintf(&b, " by %s", e.Conflicting)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Is matches ErrBlocked.
func (e BlockedError) Is(target error) bool { return target == ErrBlocked }

// BlockCauseOf extracts the cause from a BlockedError anywhere in the chain.
func BlockCauseOf(err error) (BlockCause, bool) {
	var blocked BlockedError
	if errors.As(err, &blocked) {
		return blocked.Cause, true
	}
	return "", false
}

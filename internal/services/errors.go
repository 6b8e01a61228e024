package services

import (
	"errors"
	"fmt"

	"github.com/HammerMeetNail/nearby/internal/geo"
	"github.com/HammerMeetNail/nearby/internal/models"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrExpired             = errors.New("ping expired")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrBlocked             = errors.New("users are blocked")
	ErrSelfTarget          = errors.New("cannot target yourself")

	ErrDuplicateActive = fmt.Errorf("%w: a pending ping already exists between these users", ErrConflict)
	ErrAlreadyResolved = fmt.Errorf("%w: ping already resolved", ErrConflict)
)

// AlreadyResolvedError carries the terminal ping so clients can reconcile.
type AlreadyResolvedError struct {
	Ping *models.Ping
}

func (e *AlreadyResolvedError) Error() string {
	if e.Ping == nil {
		return ErrAlreadyResolved.Error()
	}
	return fmt.Sprintf("%s (status %s)", ErrAlreadyResolved.Error(), e.Ping.Status)
}

func (e *AlreadyResolvedError) Unwrap() error {
	return ErrAlreadyResolved
}

// Wire codes surfaced to clients in error events and HTTP bodies.
const (
	CodeInvalidInput        = "invalid_input"
	CodeNotFound            = "not_found"
	CodeForbidden           = "forbidden"
	CodeDuplicateActive     = "duplicate_active"
	CodeAlreadyResolved     = "already_resolved"
	CodeConflict            = "conflict"
	CodeExpired             = "expired"
	CodeLocationUnavailable = "location_unavailable"
	CodeBlocked             = "blocked"
	CodeSelfTarget          = "self_target"
	CodeInternal            = "internal"
)

// ErrorCode maps an error to its stable wire code. Order matters: the
// specific conflict kinds are checked before ErrConflict.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput), errors.Is(err, geo.ErrNonFinite), errors.Is(err, geo.ErrOutOfRange):
		return CodeInvalidInput
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrDuplicateActive):
		return CodeDuplicateActive
	case errors.Is(err, ErrAlreadyResolved):
		return CodeAlreadyResolved
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrExpired):
		return CodeExpired
	case errors.Is(err, ErrLocationUnavailable):
		return CodeLocationUnavailable
	case errors.Is(err, ErrBlocked):
		return CodeBlocked
	case errors.Is(err, ErrSelfTarget):
		return CodeSelfTarget
	default:
		return CodeInternal
	}
}

/*
errors.go - Error types for the registry core

PURPOSE:
  All domain error types in one place. The API layer maps these to HTTP
  statuses in a single switch (see api/handlers.go): validation -> 400,
  not-found -> 404, everything else -> 500.

USAGE:
  Callers match with errors.As / the helper predicates:

    if registry.IsNotFound(err) { ... }

SEE ALSO:
  - writer.go: produces these errors
  - api/handlers.go: maps them to HTTP statuses
*/
package registry

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrValidation is the base of all request-shape failures.
	ErrValidation = errors.New("invalid request")

	// ErrNotFound is the base of all missing-reference failures.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned by the store when an insert hits a unique
	// constraint on a natural key. Resolvers treat it as "someone else created
	// the row first" and retry the lookup once.
	ErrDuplicateKey = errors.New("duplicate natural key")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports a missing or malformed request field.
// Field is the JSON name of the offending field, as the client sent it.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("champ manquant: %s", e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a referenced row that does not exist.
type NotFoundError struct {
	Kind string // "service", "employe", "materiel", "operation", "incident"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s non trouve: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// PREDICATES
// =============================================================================

// IsValidation reports whether err is a client-side request error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a missing-reference error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

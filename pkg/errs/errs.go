// Package errs defines the failure taxonomy shared by the catalog, the
// stage-log state machine and the orchestrator. Every kind is an httperror
// carrying the status code the HTTP layer renders.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/lib/pq"
)

// NotFound reports a referenced id or natural key that does not exist.
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// ConstraintViolation reports a uniqueness or referential-integrity breach.
func ConstraintViolation(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf(format, args...))
}

// Validation reports malformed input to a create or update projection.
func Validation(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// Forbidden reports an attempted mutation of a closed stage log.
func Forbidden(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusForbidden, fmt.Sprintf(format, args...))
}

// PreconditionFailed reports a missing well-known row such as the raw stage.
func PreconditionFailed(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusPreconditionFailed, fmt.Sprintf(format, args...))
}

// Internal hides the cause behind a generic message; callers log the cause.
func Internal(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf(format, args...))
}

// StatusCode returns the taxonomy status of the first typed error in the
// chain of err, or 500 when there is none.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if httperror.IsHTTPError(e) {
			return httperror.GetStatusCode(e)
		}
	}
	return http.StatusInternalServerError
}

func IsNotFound(err error) bool {
	return err != nil && StatusCode(err) == http.StatusNotFound
}

func IsConflict(err error) bool {
	return err != nil && StatusCode(err) == http.StatusConflict
}

func IsValidation(err error) bool {
	return err != nil && StatusCode(err) == http.StatusBadRequest
}

func IsForbidden(err error) bool {
	return err != nil && StatusCode(err) == http.StatusForbidden
}

func IsPreconditionFailed(err error) bool {
	return err != nil && StatusCode(err) == http.StatusPreconditionFailed
}

// PostgreSQL error classes the store translates.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqNotNullViolation    = "23502"
	pqCheckViolation      = "23514"
	pqStringTooLong       = "22001"
)

// FromPostgres translates constraint errors raised by PostgreSQL into the
// taxonomy. ok is false when err is not a constraint error.
func FromPostgres(err error, entity string) (translated error, ok bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil, false
	}

	switch string(pqErr.Code) {
	case pqUniqueViolation:
		return ConstraintViolation("%s violates unique constraint %s", entity, pqErr.Constraint), true
	case pqForeignKeyViolation:
		return ConstraintViolation("%s violates foreign key constraint %s", entity, pqErr.Constraint), true
	case pqNotNullViolation:
		return Validation("%s is missing required field %s", entity, pqErr.Column), true
	case pqCheckViolation:
		return Validation("%s violates check constraint %s", entity, pqErr.Constraint), true
	case pqStringTooLong:
		return Validation("%s has a value that is too long", entity), true
	}
	return nil, false
}

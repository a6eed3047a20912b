package users

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// TextCodeInvalidInput marks payload validation failures.
	TextCodeInvalidInput = "INVALID_INPUT"
	// TextCodeEmailTaken marks duplicate email registrations.
	TextCodeEmailTaken = "EMAIL_TAKEN"
	// TextCodeUserNotFound marks lookups against missing user ids.
	TextCodeUserNotFound = "USER_NOT_FOUND"
	// TextCodeInvalidCreds covers both unknown email and wrong password.
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeTokenMissing marks requests without a bearer token.
	TextCodeTokenMissing = "TOKEN_MISSING"
	// TextCodeTokenExpired marks tokens past their expiry claim.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed marks structurally invalid or tampered tokens.
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeEmptyPassword marks empty or whitespace-only password input.
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	// TextCodeTimeout marks operations that exceeded their deadline.
	TextCodeTimeout = "OPERATION_TIMEOUT"
)

// ErrEmailTaken is returned when a registration or update targets an email
// that already belongs to another record.
var ErrEmailTaken = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials covers unknown email and wrong password alike so a
// caller cannot tell which factor failed.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMissing is returned when no bearer token is present on a request.
var ErrTokenMissing = goerrors.New("missing authentication token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its embedded expiry.
// Expiry is the only invalidation mechanism; there is no revocation list.
var ErrTokenExpired = goerrors.New("authentication token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token fails signature or structural
// checks.
var ErrTokenMalformed = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmptyPassword is returned by the hasher for empty or whitespace-only
// plaintext.
var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrDeadlineExceeded is returned when an operation runs past the configured
// per-operation timeout.
var ErrDeadlineExceeded = goerrors.New("operation timed out", goerrors.CategoryOperation).
	WithTextCode(TextCodeTimeout).
	WithCode(http.StatusRequestTimeout)

// userNotFound builds a NotFound error carrying the id that missed.
func userNotFound(id uuid.UUID) error {
	return goerrors.New("user not found", goerrors.CategoryNotFound).
		WithTextCode(TextCodeUserNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"id": id.String()})
}

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	return goerrors.IsNotFound(err)
}

// IsConflict reports whether err represents a uniqueness conflict.
func IsConflict(err error) bool {
	return hasCategory(err, goerrors.CategoryConflict)
}

// IsUnauthorized reports whether err represents a credential or token
// failure.
func IsUnauthorized(err error) bool {
	return hasCategory(err, goerrors.CategoryAuth)
}

// IsValidation reports whether err represents rejected input.
func IsValidation(err error) bool {
	return hasCategory(err, goerrors.CategoryValidation)
}

// IsTimeout reports whether err represents an exceeded deadline.
func IsTimeout(err error) bool {
	if goerrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryOperation && rich.TextCode == TextCodeTimeout
	}
	return false
}

func hasCategory(err error, category goerrors.Category) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == category
	}
	return false
}

// isUniqueViolation sniffs driver-level unique constraint failures. The
// database index is the final arbiter of email uniqueness; the service-level
// pre-check only improves error messages.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}

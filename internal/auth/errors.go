package auth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfiguration means the signing secret is not configured.
	ErrConfiguration = errors.New("auth: signing secret is not configured")

	// ErrTokenInvalid covers a missing or malformed header, a bad
	// signature and an expired token.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrTokenExpired wraps ErrTokenInvalid so callers may tell them apart
	// internally while the HTTP edge treats both the same.
	ErrTokenExpired = fmt.Errorf("auth: token expired: %w", ErrTokenInvalid)

	ErrIdentityNotFound = errors.New("auth: account not found")
	ErrForbidden        = errors.New("auth: forbidden")
	ErrResourceNotFound = errors.New("auth: resource not found")
	ErrStoreFault       = errors.New("auth: store failure")

	// ErrInvalidCredentials is returned by Login for an unknown username
	// or a wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid username or password")
	ErrAccountDisabled    = errors.New("auth: account is disabled")
)

// StatusCode maps an authorization error onto the HTTP status the API
// answers with. Anything unrecognised is treated as an internal fault.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrStoreFault):
		return http.StatusInternalServerError
	case errors.Is(err, ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrIdentityNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Message is the plain-text body sent for err. Token sub-causes share one
// message.
func Message(err error) string {
	switch StatusCode(err) {
	case http.StatusOK:
		return ""
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusUnauthorized:
		return "Unauthorized"
	default:
		return "Internal Server Error"
	}
}

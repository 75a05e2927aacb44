package mailauth

import "errors"

// Sentinel errors returned by issuers, the authenticator and stores.
var (
	// ErrUnknownEmail is returned when issuance is attempted for an email
	// that has no record in the user store.
	ErrUnknownEmail = errors.New("email not found")

	// ErrInvalidOrExpiredCode is returned when a presented login code does
	// not match any stored code, or the matching code has expired.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired login code")

	// ErrInvalidOrExpiredToken is returned when a presented bearer token
	// does not match any stored token, or the matching token has expired.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrNotAuthenticated is returned when no credential was presented.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUserNotFound is returned by stores when no record exists for a key.
	ErrUserNotFound = errors.New("user not found")
)

// Error codes used in JSON error responses
const (
	ErrCodeUnknownEmail = "unknown_email"
	ErrCodeInvalidCode  = "invalid_code"
	ErrCodeInvalidToken = "invalid_token"
	ErrCodeMissingField = "missing_field"
	ErrCodeNotifyFailed = "notify_failed"
	ErrCodeServerError  = "server_error"
)

// AuthError is a structured authentication error suitable for JSON responses.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// NewAuthError creates a new AuthError
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

package mailauth

import (
	"strings"
	"time"
)

// UserRecord is a user account keyed by email. It owns the lifetimes of all
// login codes and session tokens issued for that email.
type UserRecord struct {
	// Lowercased email, the unique key of the record.
	Email string `json:"email"`

	// Display name.
	Name string `json:"name"`

	// Outstanding login codes, in issuance order. Entries are removed when
	// consumed; expired entries are invalid but purged lazily.
	LoginCodes []LoginCode `json:"login_codes"`

	// Issued session tokens, in issuance order. Never consumed on use.
	Tokens []SessionToken `json:"tokens"`
}

// LoginCode is the stored form of a one-time numeric login code.
// The plaintext code is never stored, only its secured value.
type LoginCode struct {
	// ID identifies the issuance for logging without revealing the code.
	ID string `json:"id"`

	// SecuredValue is SecretCodec.Secure of the plaintext code.
	SecuredValue string `json:"hash"`

	// ExpiresAt tells when the code stops being accepted.
	ExpiresAt time.Time `json:"expiration"`
}

// Expired reports whether the code is past its expiration at the given time.
func (c *LoginCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// SessionToken is the stored form of a long-lived bearer token.
type SessionToken struct {
	// ID identifies the issuance for logging without revealing the token.
	ID string `json:"id"`

	// SecuredValue is SecretCodec.Secure of the plaintext token.
	SecuredValue string `json:"hash"`

	// ExpiresAt tells when the token stops being accepted.
	ExpiresAt time.Time `json:"expiration"`
}

// Expired reports whether the token is past its expiration at the given time.
func (t *SessionToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// UserStore manages user records keyed by lowercased email.
//
// Update must apply the read-modify-write atomically with respect to other
// Update calls for the same key, so concurrent logins for one email cannot
// lose writes.
type UserStore interface {
	// Get retrieves the record for an email.
	// Returns ErrUserNotFound if no record exists.
	Get(email string) (*UserRecord, error)

	// Save creates or updates a record (upsert).
	Save(rec *UserRecord) error

	// Update atomically applies fn to the record for email and persists the
	// result. Returns ErrUserNotFound if no record exists; if fn returns an
	// error nothing is persisted.
	Update(email string, fn func(rec *UserRecord) error) error

	// ForEach visits every record. Iteration stops when fn returns stop=true
	// or an error. Visit order is unspecified.
	ForEach(fn func(rec *UserRecord) (stop bool, err error)) error
}

// NormalizeEmail lowercases and trims an email for use as a store key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RevokeTokens removes all session tokens for an email. Outstanding bearer
// tokens for that user stop authenticating immediately. Login codes are left
// untouched.
func RevokeTokens(store UserStore, email string) error {
	return store.Update(NormalizeEmail(email), func(rec *UserRecord) error {
		rec.Tokens = nil
		return nil
	})
}

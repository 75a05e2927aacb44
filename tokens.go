package mailauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Defaults for TokenIssuer.
const (
	// DefaultTokenBytes tells how many random bytes back a bearer token.
	// The token string is base64url, roughly 4/3 times longer.
	DefaultTokenBytes = 24

	// DefaultTokenExpiration tells how long a bearer token remains valid.
	DefaultTokenExpiration = 365 * 24 * time.Hour
)

// TokenIssuer mints long-lived bearer tokens for already-authenticated
// emails. The plaintext token is returned to the caller exactly once; only
// its secured form is stored.
type TokenIssuer struct {
	// Store holds the user records tokens are appended to. Required.
	Store UserStore

	// Codec secures token values before storage. Required.
	Codec SecretCodec

	// TokenBytes overrides DefaultTokenBytes. Must be at least 16 to keep
	// 128 bits of entropy.
	TokenBytes int

	// TokenExpiration overrides DefaultTokenExpiration.
	TokenExpiration time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Issue creates a bearer token for email, stores its secured form with an
// expiration and returns the plaintext token. Returns ErrUnknownEmail if the
// email has no record; the store is not mutated in that case.
func (ti *TokenIssuer) Issue(email string) (string, error) {
	email = NormalizeEmail(email)

	numBytes := ti.TokenBytes
	if numBytes == 0 {
		numBytes = DefaultTokenBytes
	}
	if numBytes < 16 {
		return "", fmt.Errorf("token bytes too small: %d, need at least 16", numBytes)
	}
	expiration := ti.TokenExpiration
	if expiration == 0 {
		expiration = DefaultTokenExpiration
	}

	token, err := GenerateSecureToken(numBytes)
	if err != nil {
		return "", err
	}

	entry := SessionToken{
		ID:           uuid.NewString(),
		SecuredValue: ti.Codec.Secure(token),
		ExpiresAt:    ti.now().Add(expiration),
	}

	err = ti.Store.Update(email, func(rec *UserRecord) error {
		rec.Tokens = append(rec.Tokens, entry)
		return nil
	})
	if err == ErrUserNotFound {
		return "", ErrUnknownEmail
	}
	if err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	slog.Info("issued bearer token", "email", email, "token_id", entry.ID, "expires_at", entry.ExpiresAt)
	return token, nil
}

func (ti *TokenIssuer) now() time.Time {
	if ti.Clock != nil {
		return ti.Clock()
	}
	return time.Now()
}

// GenerateSecureToken generates a cryptographically secure random token of
// numBytes bytes, encoded as URL-safe base64.
func GenerateSecureToken(numBytes int) (string, error) {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

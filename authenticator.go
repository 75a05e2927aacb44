package mailauth

import (
	"fmt"
	"log/slog"
	"time"
)

// Identity is the authenticated principal returned by the Authenticator.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Credentials carries the secrets presented for authentication. At most one
// of the fields is honored: a login code takes precedence over a bearer
// token.
type Credentials struct {
	// LoginCode is a one-time numeric code, consumed on first success.
	LoginCode string

	// BearerToken is a long-lived session token, never consumed on use.
	BearerToken string
}

// Authenticator validates presented login codes and bearer tokens against
// the user store.
type Authenticator struct {
	// Store holds the user records. Required.
	Store UserStore

	// Codec must be the same codec the issuers secured values with. Required.
	Codec SecretCodec

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Authenticate resolves creds to an identity.
//
// A login code, if present, is checked first: the matching unexpired entry is
// removed from its user's record before the identity is returned, so a second
// presentation of the same code fails with ErrInvalidOrExpiredCode. Otherwise
// a bearer token is checked and left in place on success, supporting repeated
// session checks. Failed lookups mutate nothing.
func (a *Authenticator) Authenticate(creds Credentials) (*Identity, error) {
	if creds.LoginCode != "" {
		return a.authenticateCode(creds.LoginCode)
	}
	if creds.BearerToken != "" {
		return a.authenticateToken(creds.BearerToken)
	}
	return nil, ErrNotAuthenticated
}

func (a *Authenticator) authenticateCode(code string) (*Identity, error) {
	now := a.now()

	var identity *Identity
	var codeID string
	err := a.Store.ForEach(func(rec *UserRecord) (bool, error) {
		for _, c := range rec.LoginCodes {
			if a.Codec.Verify(c.SecuredValue, code) && !c.Expired(now) {
				identity = &Identity{Email: rec.Email, Name: rec.Name}
				codeID = c.ID
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan login codes: %w", err)
	}
	if identity == nil {
		return nil, ErrInvalidOrExpiredCode
	}

	// Consume the matched code so it cannot be replayed.
	err = a.Store.Update(identity.Email, func(rec *UserRecord) error {
		kept := rec.LoginCodes[:0]
		for _, c := range rec.LoginCodes {
			if c.ID != codeID {
				kept = append(kept, c)
			}
		}
		rec.LoginCodes = kept
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume login code: %w", err)
	}

	slog.Info("login code accepted", "email", identity.Email, "code_id", codeID)
	return identity, nil
}

func (a *Authenticator) authenticateToken(token string) (*Identity, error) {
	now := a.now()

	var identity *Identity
	err := a.Store.ForEach(func(rec *UserRecord) (bool, error) {
		for _, t := range rec.Tokens {
			if a.Codec.Verify(t.SecuredValue, token) && !t.Expired(now) {
				identity = &Identity{Email: rec.Email, Name: rec.Name}
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tokens: %w", err)
	}
	if identity == nil {
		return nil, ErrInvalidOrExpiredToken
	}
	return identity, nil
}

func (a *Authenticator) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

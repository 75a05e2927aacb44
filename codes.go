package mailauth

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Defaults for CodeIssuer.
const (
	// DefaultCodeDigits is the number of decimal digits in a login code.
	DefaultCodeDigits = 6

	// DefaultCodeExpiration tells how long an unused login code remains valid.
	DefaultCodeExpiration = 5 * time.Minute
)

// NotifyStatus is the outcome of handing a login code to the Notifier.
type NotifyStatus string

const (
	// NotifySent means the notifier accepted the code for delivery.
	NotifySent NotifyStatus = "sent"

	// NotifyFailed means delivery failed. The code was still issued and
	// remains valid; the user can be told the code out-of-band or retry.
	NotifyFailed NotifyStatus = "failed"
)

// CodeIssuer creates one-time numeric login codes, stores their secured form
// with a short expiration and hands the plaintext to the Notifier.
type CodeIssuer struct {
	// Store holds the user records codes are appended to. Required.
	Store UserStore

	// Codec secures code values before storage. Required.
	Codec SecretCodec

	// Notifier delivers the plaintext code out-of-band. Required.
	Notifier Notifier

	// CodeDigits overrides DefaultCodeDigits.
	CodeDigits int

	// CodeExpiration overrides DefaultCodeExpiration.
	CodeExpiration time.Duration

	// Rand is the random source digits are drawn from. Defaults to
	// crypto/rand. Tests may install a deterministic source.
	Rand io.Reader

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Issue creates a login code for email, persists its secured form and asks
// the Notifier to deliver the plaintext. Returns ErrUnknownEmail (store
// untouched) if the email has no record.
//
// Issuance and notification are independent: when delivery fails the code has
// already been stored and stays valid, and status reports NotifyFailed rather
// than the call erroring.
func (ci *CodeIssuer) Issue(ctx context.Context, email string) (code string, status NotifyStatus, err error) {
	email = NormalizeEmail(email)

	digits := ci.CodeDigits
	if digits == 0 {
		digits = DefaultCodeDigits
	}
	expiration := ci.CodeExpiration
	if expiration == 0 {
		expiration = DefaultCodeExpiration
	}

	code, err = generateNumericCode(ci.randSource(), digits)
	if err != nil {
		return "", "", err
	}

	entry := LoginCode{
		ID:           uuid.NewString(),
		SecuredValue: ci.Codec.Secure(code),
		ExpiresAt:    ci.now().Add(expiration),
	}

	err = ci.Store.Update(email, func(rec *UserRecord) error {
		rec.LoginCodes = append(rec.LoginCodes, entry)
		return nil
	})
	if err == ErrUserNotFound {
		return "", "", ErrUnknownEmail
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to store login code: %w", err)
	}

	slog.Info("issued login code", "email", email, "code_id", entry.ID, "expires_at", entry.ExpiresAt)

	if err := ci.Notifier.Notify(ctx, email, code); err != nil {
		// The code is already persisted and valid; report delivery failure
		// without unissuing it.
		log.Printf("failed to notify %s of login code: %v", email, err)
		return code, NotifyFailed, nil
	}

	return code, NotifySent, nil
}

func (ci *CodeIssuer) randSource() io.Reader {
	if ci.Rand != nil {
		return ci.Rand
	}
	return rand.Reader
}

func (ci *CodeIssuer) now() time.Time {
	if ci.Clock != nil {
		return ci.Clock()
	}
	return time.Now()
}

// generateNumericCode draws digits decimal digits from src, each
// independently uniform over 0-9. Leading zeros are allowed. Bytes >= 250 are
// rejected so the modulo does not bias the distribution.
func generateNumericCode(src io.Reader, digits int) (string, error) {
	out := make([]byte, digits)
	buf := make([]byte, 1)
	for i := 0; i < digits; {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("failed to generate login code: %w", err)
		}
		if buf[0] >= 250 {
			continue
		}
		out[i] = '0' + buf[0]%10
		i++
	}
	return string(out), nil
}

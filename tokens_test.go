package mailauth_test

import (
	"encoding/base64"
	"testing"
	"time"

	ma "github.com/tanur/mailauth"
)

func TestIssueTokenUnknownEmail(t *testing.T) {
	store, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	issuer := &ma.TokenIssuer{Store: store, Codec: testCodec(t)}
	if _, err := issuer.Issue("nobody@example.com"); err != ma.ErrUnknownEmail {
		t.Errorf("Expected ErrUnknownEmail, got %v", err)
	}
}

func TestIssueTokenEntropyAndEncoding(t *testing.T) {
	store, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	issuer := &ma.TokenIssuer{Store: store, Codec: testCodec(t)}
	token, err := issuer.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("Token is not URL-safe base64: %v", err)
	}
	if len(raw) < 16 {
		t.Errorf("Token carries %d bytes of entropy, need at least 16", len(raw))
	}
}

func TestIssueTokenRejectsSmallTokenBytes(t *testing.T) {
	store, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	issuer := &ma.TokenIssuer{Store: store, Codec: testCodec(t), TokenBytes: 8}
	if _, err := issuer.Issue("alice@example.com"); err == nil {
		t.Error("Expected error for TokenBytes below 16")
	}
}

func TestIssueTokenStoresSecuredForm(t *testing.T) {
	store, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	codec := testCodec(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := &ma.TokenIssuer{Store: store, Codec: codec, Clock: fixedClock(now)}

	token, err := issuer.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	rec, err := store.Get("alice@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(rec.Tokens) != 1 {
		t.Fatalf("Expected 1 stored token, got %d", len(rec.Tokens))
	}
	entry := rec.Tokens[0]
	if entry.SecuredValue == token {
		t.Error("Plaintext token must not be stored")
	}
	if !codec.Verify(entry.SecuredValue, token) {
		t.Error("Stored secured value does not verify against the issued token")
	}
	if !entry.ExpiresAt.Equal(now.Add(365 * 24 * time.Hour)) {
		t.Errorf("Expected expiration one year out, got %v", entry.ExpiresAt)
	}
}

func TestRevokeTokens(t *testing.T) {
	store, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	codec := testCodec(t)
	issuer := &ma.TokenIssuer{Store: store, Codec: codec}
	token, err := issuer.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	auth := &ma.Authenticator{Store: store, Codec: codec}
	if _, err := auth.Authenticate(ma.Credentials{BearerToken: token}); err != nil {
		t.Fatalf("Token should authenticate before revocation: %v", err)
	}

	if err := ma.RevokeTokens(store, "alice@example.com"); err != nil {
		t.Fatalf("RevokeTokens failed: %v", err)
	}
	if _, err := auth.Authenticate(ma.Credentials{BearerToken: token}); err != ma.ErrInvalidOrExpiredToken {
		t.Errorf("Expected ErrInvalidOrExpiredToken after revocation, got %v", err)
	}
}

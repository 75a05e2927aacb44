package mailauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SecretCodec turns a plaintext secret (login code or bearer token) into the
// form kept in the store. Secure must be deterministic so secured values can
// be compared for equality; it must not be reversible.
type SecretCodec interface {
	// Secure returns the stored representation of a plaintext secret.
	Secure(secret string) string

	// Verify compares a stored representation against a plaintext secret
	// in constant time.
	Verify(secured, secret string) bool
}

// HMACCodec secures secrets with HMAC-SHA256 under a fixed key, hex encoded.
// Keying the hash means a leaked store cannot be brute-forced offline without
// also obtaining the key.
type HMACCodec struct {
	key []byte
}

// NewHMACCodec creates a codec from a raw key. The key should be at least 32
// random bytes.
func NewHMACCodec(key []byte) (*HMACCodec, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("codec key too short: %d bytes, need at least 16", len(key))
	}
	return &HMACCodec{key: append([]byte(nil), key...)}, nil
}

// NewHMACCodecFromPassphrase derives the codec key from a passphrase and salt
// using HKDF-SHA256, for deployments that configure a passphrase rather than
// raw key material.
func NewHMACCodecFromPassphrase(passphrase, salt string) (*HMACCodec, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	r := hkdf.New(sha256.New, []byte(passphrase), []byte(salt), []byte("mailauth-secret-codec"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive codec key: %w", err)
	}
	return &HMACCodec{key: key}, nil
}

func (c *HMACCodec) Secure(secret string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *HMACCodec) Verify(secured, secret string) bool {
	return hmac.Equal([]byte(secured), []byte(c.Secure(secret)))
}

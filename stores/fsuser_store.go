package stores

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ma "github.com/tanur/mailauth"
)

// FSUserStore stores user records as one JSON document per email, suitable
// for development and small applications. Updates are applied under a
// store-wide lock with atomic file replacement, so concurrent logins for the
// same email cannot lose writes.
type FSUserStore struct {
	StoragePath string
	mu          sync.RWMutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) getUsersDir() string {
	return filepath.Join(s.StoragePath, "users")
}

func (s *FSUserStore) getUserPath(email string) string {
	return filepath.Join(s.getUsersDir(), url.PathEscape(ma.NormalizeEmail(email))+".json")
}

// Get retrieves the record for an email.
func (s *FSUserStore) Get(email string) (*ma.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getUnsafe(email)
}

// getUnsafe retrieves a record without locking (caller must hold lock)
func (s *FSUserStore) getUnsafe(email string) (*ma.UserRecord, error) {
	data, err := os.ReadFile(s.getUserPath(email))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ma.ErrUserNotFound
		}
		return nil, err
	}
	return decodeUserRecord(data)
}

// Save creates or updates a record (upsert).
func (s *FSUserStore) Save(rec *ma.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Email = ma.NormalizeEmail(rec.Email)
	if rec.Email == "" {
		return fmt.Errorf("user record has no email")
	}
	return s.saveUnsafe(rec)
}

func (s *FSUserStore) saveUnsafe(rec *ma.UserRecord) error {
	path := s.getUserPath(rec.Email)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	return writeAtomicFile(path, data)
}

// Update atomically applies fn to the record for email and persists the
// result. The read and the write happen under the store lock, so no other
// Update can interleave.
func (s *FSUserStore) Update(email string, fn func(rec *ma.UserRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getUnsafe(email)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	return s.saveUnsafe(rec)
}

// ForEach visits every stored record.
func (s *FSUserStore) ForEach(fn func(rec *ma.UserRecord) (stop bool, err error)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.getUsersDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.getUsersDir(), entry.Name()))
		if err != nil {
			return err
		}
		rec, err := decodeUserRecord(data)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}

		stop, err := fn(rec)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}

	return nil
}

// Validate loads every stored record and fails on the first schema problem.
// Call it at startup: a store that cannot be read cleanly should halt the
// process rather than misbehave later.
func (s *FSUserStore) Validate() error {
	return s.ForEach(func(rec *ma.UserRecord) (bool, error) {
		return false, nil
	})
}

// decodeUserRecord parses and validates a stored record. Unknown fields and
// missing keys are schema mismatches, surfaced as errors rather than
// silently tolerated.
func decodeUserRecord(data []byte) (*ma.UserRecord, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()

	var rec ma.UserRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("invalid user record: %w", err)
	}
	if rec.Email == "" {
		return nil, fmt.Errorf("invalid user record: missing email")
	}
	for _, c := range rec.LoginCodes {
		if c.SecuredValue == "" || c.ExpiresAt.IsZero() {
			return nil, fmt.Errorf("invalid user record %s: malformed login code", rec.Email)
		}
	}
	for _, t := range rec.Tokens {
		if t.SecuredValue == "" || t.ExpiresAt.IsZero() {
			return nil, fmt.Errorf("invalid user record %s: malformed token", rec.Email)
		}
	}
	return &rec, nil
}

package stores

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	ma "github.com/tanur/mailauth"
)

// FSContextStore persists a single SessionContext as a JSON file, standing
// in for a browser's local storage so a session survives restarts.
type FSContextStore struct {
	StoragePath string
	mu          sync.Mutex
}

func NewFSContextStore(storagePath string) *FSContextStore {
	return &FSContextStore{StoragePath: storagePath}
}

func (s *FSContextStore) getContextPath() string {
	return filepath.Join(s.StoragePath, "session_context.json")
}

// Load returns the stored context, or nil if none is stored.
func (s *FSContextStore) Load() (*ma.SessionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.getContextPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sc ma.SessionContext
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Save stores the context (upsert).
func (s *FSContextStore) Save(sc *ma.SessionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.getContextPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

// Clear removes the stored context.
func (s *FSContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.getContextPath())
	if os.IsNotExist(err) {
		return nil // Already cleared
	}
	return err
}

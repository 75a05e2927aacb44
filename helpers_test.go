package mailauth_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	ma "github.com/tanur/mailauth"
	"github.com/tanur/mailauth/stores"
)

// setupTestStore creates a temporary FS-backed user store seeded with one
// known user (alice@example.com / "Alice").
func setupTestStore(t *testing.T) (ma.UserStore, string) {
	tmpDir, err := os.MkdirTemp("", "mailauth-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	store := stores.NewFSUserStore(tmpDir)
	if err := store.Save(&ma.UserRecord{Email: "alice@example.com", Name: "Alice"}); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}

	return store, tmpDir
}

// cleanup removes the temporary storage directory
func cleanup(t *testing.T, tmpDir string) {
	if err := os.RemoveAll(tmpDir); err != nil {
		t.Logf("Warning: failed to cleanup temp dir: %v", err)
	}
}

func testCodec(t *testing.T) *ma.HMACCodec {
	codec, err := ma.NewHMACCodec([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	return codec
}

// recordingNotifier captures the last code handed to it, optionally failing
// every delivery.
type recordingNotifier struct {
	Emails []string
	Codes  []string
	Fail   bool
}

func (n *recordingNotifier) Notify(ctx context.Context, email, code string) error {
	if n.Fail {
		return fmt.Errorf("smtp unreachable")
	}
	n.Emails = append(n.Emails, email)
	n.Codes = append(n.Codes, code)
	return nil
}

func (n *recordingNotifier) LastCode(t *testing.T) string {
	if len(n.Codes) == 0 {
		t.Fatal("No code was delivered")
	}
	return n.Codes[len(n.Codes)-1]
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

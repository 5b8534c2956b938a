package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestSetGetDelete(t *testing.T) {
	keyring.MockInit()
	s := NewStore("pf-slots-test", "")

	if err := s.Set(SettlementAPIKey, "key-123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(SettlementAPIKey)
	if err != nil || got != "key-123" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := s.Delete(SettlementAPIKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(SettlementAPIKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}

func TestEnsureIsStable(t *testing.T) {
	keyring.MockInit()
	s := NewStore("pf-slots-test", "")

	first, err := s.Ensure(SigningKey, 32)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(first))
	}
	second, err := s.Ensure(SigningKey, 32)
	if err != nil || second != first {
		t.Errorf("second Ensure = %q, %v; want the stored key", second, err)
	}
}

func TestFallbackWhenKeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: no session bus"))
	defer keyring.MockInit()

	path := filepath.Join(t.TempDir(), "secrets.json")
	s := NewStore("pf-slots-test", path)

	if err := s.Set(SigningKey, "file-secret"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Mode().Perm() != 0o600 {
		t.Errorf("fallback file = %v, %v", info, err)
	}
	got, err := s.Get(SigningKey)
	if err != nil || got != "file-secret" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if err := s.Delete(SigningKey); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(SigningKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}

func TestNoFallbackConfigured(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: no session bus"))
	defer keyring.MockInit()

	s := NewStore("pf-slots-test", "")
	if err := s.Set(SigningKey, "x"); err == nil {
		t.Error("expected error without keychain or fallback")
	}
}

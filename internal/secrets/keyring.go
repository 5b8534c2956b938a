// Package secrets keeps server secrets (the token signing key, settlement
// credentials) in the OS keychain, with a file fallback for headless hosts.
package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// Secret names.
const (
	SigningKey       = "jwt-signing-key"
	SettlementAPIKey = "settlement-api-key"
)

// ErrNotFound is returned when a secret is in neither the keychain nor the
// fallback file.
var ErrNotFound = keyring.ErrNotFound

// Store wraps the OS keychain.
type Store struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewStore creates a store. fallbackPath may be empty to require a keychain.
func NewStore(service, fallbackPath string) *Store {
	if strings.TrimSpace(service) == "" {
		service = "pf-slots"
	}
	return &Store{service: service, fallbackPath: fallbackPath}
}

// Set stores a secret.
func (s *Store) Set(name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("secrets: name is required")
	}
	err := keyring.Set(s.service, name, value)
	if err == nil {
		return nil
	}
	if !isKeyringUnavailable(err) {
		return fmt.Errorf("secrets: keyring set %s: %w", name, err)
	}
	return s.setFallback(name, value)
}

// Get reads a secret, falling back to the file when the keychain has none.
func (s *Store) Get(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("secrets: name is required")
	}
	val, err := keyring.Get(s.service, name)
	if err == nil {
		return val, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("secrets: keyring get %s: %w", name, err)
	}
	fallback, ferr := s.getFallback(name)
	if ferr == nil {
		return fallback, nil
	}
	if errors.Is(err, keyring.ErrNotFound) || errors.Is(ferr, ErrNotFound) {
		return "", ErrNotFound
	}
	return "", ferr
}

// Delete removes a secret from both places.
func (s *Store) Delete(name string) error {
	err := keyring.Delete(s.service, name)
	ferr := s.deleteFallback(name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
		return fmt.Errorf("secrets: keyring delete %s: %w", name, err)
	}
	return ferr
}

// Ensure returns the named secret, generating and storing n random bytes
// (hex encoded) the first time.
func (s *Store) Ensure(name string, n int) (string, error) {
	val, err := s.Get(name)
	if err == nil && val != "" {
		return val, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("secrets: generate %s: %w", name, err)
	}
	val = hex.EncodeToString(buf)
	if err := s.Set(name, val); err != nil {
		return "", err
	}
	return val, nil
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

func (s *Store) setFallback(name, value string) error {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return fmt.Errorf("secrets: keyring unavailable and no fallback path configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallbackUnlocked()
	if err != nil {
		return err
	}
	data[name] = value
	return s.writeFallbackUnlocked(data)
}

func (s *Store) getFallback(name string) (string, error) {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return "", fmt.Errorf("secrets: fallback path not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallbackUnlocked()
	if err != nil {
		return "", err
	}
	val, ok := data[name]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (s *Store) deleteFallback(name string) error {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallbackUnlocked()
	if err != nil {
		return err
	}
	if _, ok := data[name]; !ok {
		return nil
	}
	delete(data, name)
	return s.writeFallbackUnlocked(data)
}

func (s *Store) readFallbackUnlocked() (map[string]string, error) {
	out := map[string]string{}
	raw, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("secrets: read fallback: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("secrets: decode fallback: %w", err)
	}
	return out, nil
}

func (s *Store) writeFallbackUnlocked(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("secrets: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("secrets: encode fallback: %w", err)
	}
	if err := os.WriteFile(s.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("secrets: write fallback: %w", err)
	}
	return nil
}

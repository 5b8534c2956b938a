package engine

import (
	"errors"
	"strings"
	"testing"
)

func TestCommitKnownVector(t *testing.T) {
	got, err := Commit("abc")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Commit(abc) = %s, want %s", got, want)
	}
}

func TestVerifyCommitment(t *testing.T) {
	abc, _ := Commit("abc")
	xyz, _ := Commit("xyz")

	tests := []struct {
		name   string
		secret string
		hash   string
		want   bool
	}{
		{"matching seed", "abc", abc, true},
		{"uppercase hex digest", "abc", strings.ToUpper(abc), true},
		{"other seed", "abc", xyz, false},
		{"truncated hash", "abc", abc[:32], false},
		{"not hex", "abc", "zz", false},
		{"empty hash", "abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyCommitment(tt.secret, tt.hash)
			if err != nil {
				t.Fatalf("VerifyCommitment: %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifyCommitment(%q, %q) = %v, want %v", tt.secret, tt.hash, got, tt.want)
			}
		})
	}
}

func TestCommitRoundTripAllHashers(t *testing.T) {
	secrets := []string{"a", "abc", "e48cce04b6eb5ea077f2cb1f94add672d18bf2673a5fdacd17457463cd82e495", "ünïcødé"}
	for _, name := range []string{HashSHA256, HashSHA3, HashBlake2b} {
		h, _ := HasherByName(name)
		c := NewCommitment(h)
		for _, s := range secrets {
			hash, err := c.Commit(s)
			if err != nil {
				t.Fatalf("%s Commit(%q): %v", name, s, err)
			}
			if len(hash) != 64 {
				t.Errorf("%s commitment length = %d, want 64", name, len(hash))
			}
			ok, _ := c.Verify(s, hash)
			if !ok {
				t.Errorf("%s Verify(%q, Commit(%q)) = false", name, s, s)
			}
			if ok, _ := c.Verify(s+"x", hash); ok {
				t.Errorf("%s Verify accepted a different secret", name)
			}
		}
	}
}

func TestEmptySecretIsInvalidInput(t *testing.T) {
	if _, err := Commit(""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Commit(\"\") error = %v, want ErrInvalidInput", err)
	}
	if _, err := VerifyCommitment("", "ba7816bf"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("VerifyCommitment(\"\") error = %v, want ErrInvalidInput", err)
	}
}

func TestHasherByNameRejectsUnknown(t *testing.T) {
	if _, err := HasherByName("md5"); err == nil {
		t.Error("Expected error for unsupported hash algorithm")
	}
}

func TestNewSeedPair(t *testing.T) {
	c := NewCommitment(nil)
	pair, err := NewSeedPair(c, "")
	if err != nil {
		t.Fatalf("NewSeedPair: %v", err)
	}
	if len(pair.ServerSeed) != 64 {
		t.Errorf("server seed length = %d, want 64", len(pair.ServerSeed))
	}
	if len(pair.ClientSeed) != 32 {
		t.Errorf("client seed length = %d, want 32", len(pair.ClientSeed))
	}
	if err := pair.Validate(c); err != nil {
		t.Errorf("Validate: %v", err)
	}

	pair.ServerSeedHash = strings.Repeat("0", 64)
	if err := pair.Validate(c); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Validate with wrong hash = %v, want ErrInvalidInput", err)
	}

	custom, _ := NewSeedPair(c, "my-client-seed")
	if custom.ClientSeed != "my-client-seed" {
		t.Errorf("client seed = %q, want my-client-seed", custom.ClientSeed)
	}
	if custom.Public().ServerSeedHash != custom.ServerSeedHash {
		t.Error("Public() dropped the server seed hash")
	}
}

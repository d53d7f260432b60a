package secrets

import (
	"strings"
	"testing"
)

func TestGenerate_PrefixAndUniqueness(t *testing.T) {
	a, err := Generate("wm_")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(a, "wm_") {
		t.Errorf("expected wm_ prefix, got %s", a)
	}

	b, err := Generate("wm_")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a == b {
		t.Error("expected two generated tokens to differ")
	}
}

func TestHashAndVerify_RoundTrip(t *testing.T) {
	token, err := Generate("wm_")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	hash, err := Hash(token)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "argon2id$") {
		t.Errorf("expected argon2id-prefixed hash, got %s", hash)
	}
	if err := Verify(token, hash); err != nil {
		t.Errorf("expected token to verify, got %v", err)
	}
}

func TestVerify_WrongTokenMismatches(t *testing.T) {
	hash, err := Hash("correct-token")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := Verify("wrong-token", hash); err != ErrMismatch {
		t.Errorf("expected ErrMismatch, got %v", err)
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	if err := Verify("token", "not-a-valid-hash"); err == nil {
		t.Error("expected an error for malformed hash")
	}
}

func TestHash_IndependentSalts(t *testing.T) {
	h1, err := Hash("same-token")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := Hash("same-token")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h2 {
		t.Error("expected independently salted hashes to differ")
	}
	if err := Verify("same-token", h1); err != nil {
		t.Errorf("h1 should verify: %v", err)
	}
	if err := Verify("same-token", h2); err != nil {
		t.Errorf("h2 should verify: %v", err)
	}
}

package streamkey

import (
	"strings"
	"testing"
)

func TestGenerateProducesDistinctKeys(t *testing.T) {
	first, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(first) != keyBytes*2 {
		t.Fatalf("key length %d, want %d", len(first), keyBytes*2)
	}
	if first == second {
		t.Fatal("two generated keys should differ")
	}
	if first != strings.ToUpper(first) {
		t.Fatal("keys are upper-case hex")
	}
}

func TestHashAndVerify(t *testing.T) {
	key := "STREAMKEY123"
	hash, err := Hash(key)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "pbkdf2$sha256$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if !Verify(hash, key) {
		t.Fatal("correct key rejected")
	}
	if Verify(hash, "WRONG") {
		t.Fatal("wrong key accepted")
	}

	again, err := Hash(key)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == again {
		t.Fatal("hashes should be salted")
	}
	if !Verify(again, key) {
		t.Fatal("second hash should verify too")
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"pbkdf2$sha256$notanumber$c2FsdA$aGFzaA",
		"pbkdf2$sha256$-1$c2FsdA$aGFzaA",
		"pbkdf2$md5$1000$c2FsdA$aGFzaA",
		"pbkdf2$sha256$1000$!!!$aGFzaA",
		"pbkdf2$sha256$1000$c2FsdA$!!!",
		"pbkdf2$sha256$1000$c2FsdA",
	}
	for _, hash := range cases {
		if Verify(hash, "anything") {
			t.Errorf("malformed hash %q verified", hash)
		}
	}
}

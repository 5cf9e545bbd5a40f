// Package streamkey generates and verifies publisher stream keys. Keys are
// handed out once in plaintext; only a salted PBKDF2 hash is retained by the
// control plane.
package streamkey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyBytes       = 24
	saltLength     = 16
	hashKeyLength  = 32
	hashIterations = 120000
)

// Generate returns a new random stream key.
func Generate() (string, error) {
	bytes := make([]byte, keyBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate stream key: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(bytes)), nil
}

// Hash derives a salted PBKDF2 hash for storage.
func Hash(key string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(key), salt, hashIterations, hashKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", hashIterations, encodedSalt, encodedKey), nil
}

// Verify reports whether the candidate key matches the encoded hash. The
// comparison is constant-time; malformed hashes never match.
func Verify(encodedHash, candidate string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 || parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return false
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(storedKey) == 0 {
		return false
	}
	derived := pbkdf2.Key([]byte(candidate), salt, iterations, len(storedKey), sha256.New)
	return subtle.ConstantTimeCompare(derived, storedKey) == 1
}

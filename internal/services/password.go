package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	minPasswordLength = 8
	pbkdf2Prefix      = "pbkdf2_sha256$"
)

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks password against a stored hash. Besides bcrypt it
// accepts imported pbkdf2_sha256$iterations$salt$hex hashes and bare
// hex-encoded SHA-256 digests; for those, rehash reports that the caller
// should store a fresh bcrypt hash.
func VerifyPassword(password, stored string) (ok, rehash bool) {
	switch {
	case strings.HasPrefix(stored, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, false

	case strings.HasPrefix(stored, pbkdf2Prefix):
		parts := strings.SplitN(stored, "$", 4)
		if len(parts) != 4 {
			return false, false
		}
		iterations, err := strconv.Atoi(parts[1])
		if err != nil || iterations <= 0 {
			return false, false
		}
		expected, err := hex.DecodeString(parts[3])
		if err != nil || len(expected) == 0 {
			return false, false
		}
		key := pbkdf2.Key([]byte(password), []byte(parts[2]), iterations, len(expected), sha256.New)
		return subtle.ConstantTimeCompare(key, expected) == 1, true

	default:
		sum := sha256.Sum256([]byte(password))
		digest := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(stored))) == 1, true
	}
}

package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/crypto/pbkdf2"
)

func TestVerifyPassword(t *testing.T) {
	bcryptHash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	key := pbkdf2.Key([]byte("correct horse"), []byte("salt123"), 1000, 32, sha256.New)
	pbkdf2Hash := pbkdf2Prefix + strconv.Itoa(1000) + "$salt123$" + hex.EncodeToString(key)

	sum := sha256.Sum256([]byte("correct horse"))
	legacyHash := hex.EncodeToString(sum[:])

	tests := []struct {
		name       string
		password   string
		stored     string
		wantOK     bool
		wantRehash bool
	}{
		{"bcrypt match", "correct horse", bcryptHash, true, false},
		{"bcrypt mismatch", "wrong", bcryptHash, false, false},
		{"pbkdf2 match", "correct horse", pbkdf2Hash, true, true},
		{"pbkdf2 mismatch", "wrong", pbkdf2Hash, false, true},
		{"pbkdf2 malformed", "correct horse", pbkdf2Prefix + "x$salt", false, false},
		{"pbkdf2 bad iterations", "correct horse", pbkdf2Prefix + "0$salt$abcd", false, false},
		{"legacy sha256 match", "correct horse", legacyHash, true, true},
		{"legacy sha256 upper case", "correct horse", strings.ToUpper(legacyHash), true, true},
		{"legacy sha256 mismatch", "wrong", legacyHash, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, rehash := VerifyPassword(tt.password, tt.stored)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && rehash != tt.wantRehash {
				t.Errorf("rehash = %v, want %v", rehash, tt.wantRehash)
			}
		})
	}
}

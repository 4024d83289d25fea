// Package crypto provides hashing for host secrets.
package crypto

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// N=16384 (2^14), r=8, p=1 are recommended for interactive logins.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// HashWithScrypt hashes an input string using scrypt with the given salt.
// The salt is lowercased before use. Returns hex-encoded hash.
func HashWithScrypt(input, salt string) (string, error) {
	saltBytes := []byte(strings.ToLower(salt))
	dk, err := scrypt.Key([]byte(input), saltBytes, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("scrypt key derivation failed: %w", err)
	}
	return hex.EncodeToString(dk), nil
}

// HashHostSecret hashes the secret a host picks at session creation, salted
// with the session id so equal secrets hash differently across sessions.
func HashHostSecret(secret, sessionID string) (string, error) {
	return HashWithScrypt(secret, sessionID)
}

// VerifyHostSecret reports whether secret matches a stored hash.
func VerifyHostSecret(secret, sessionID, storedHash string) (bool, error) {
	if storedHash == "" {
		return false, nil
	}
	hash, err := HashHostSecret(secret, sessionID)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(storedHash)) == 1, nil
}

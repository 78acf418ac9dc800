package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Admin endpoints (audit lookup, savings stats, DLQ management) authenticate
// with a single operator key. Only the bcrypt hash is held in configuration.

// HashAdminKey hashes an admin key for storage in configuration.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAdminKey reports whether the presented key matches the stored hash.
// An empty hash means no admin key is configured and nothing verifies.
func VerifyAdminKey(hash, key string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

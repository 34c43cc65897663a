// Package auth holds the constant-time secret comparison used to verify the
// external scheduler's bearer token.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// SafeCompare compares two strings in constant time. Both sides are hashed
// first so the comparison does not leak length information either. Empty
// inputs never match.
func SafeCompare(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

// ValidateBearer checks an Authorization header of the form
// "Bearer <token>" against the expected secret using a timing-safe
// comparison.
func ValidateBearer(header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return SafeCompare(token, secret)
}

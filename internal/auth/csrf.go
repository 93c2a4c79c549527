package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// csrfTokenBytes is the raw entropy per token: 32 bytes = 256 bits.
// Hex-encoded on the wire, so a token is 64 characters.
const csrfTokenBytes = 32

// NewCSRFToken generates one anti-forgery token from the OS entropy
// source. The caller (the session manager) binds it to a session,
// replacing whatever token was bound before — there is exactly one live
// token per session at a time.
//
// An error here means the entropy source failed; like a hashing failure
// it is surfaced as an internal error, not swallowed.
func NewCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating csrf token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidateCSRFToken reports whether a submitted token matches the one
// bound to the session.
//
// TIMING SAFETY:
// subtle.ConstantTimeCompare examines every byte regardless of where the
// first mismatch is, so an attacker cannot recover the token byte by
// byte from response latency. (It short-circuits on length — but the
// length of our tokens is public anyway.)
//
// An empty bound token means the session was never issued one; that is a
// validation failure, not an error. The guard runs before any
// side-effecting logic, and the caller must rotate the bound token after
// every submission whether or not this returns true.
func ValidateCSRFToken(bound, submitted string) bool {
	if bound == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(bound), []byte(submitted)) == 1
}

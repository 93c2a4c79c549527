// Package auth — credential hashing and anti-forgery primitives.
//
// WHY BCRYPT?
// bcrypt is a password hashing function specifically designed to be slow.
// That slowness is a security feature: it makes brute-force attacks expensive.
//
// bcrypt automatically:
//   - Generates a random 128-bit salt (so two users with the same password
//     get different hashes)
//   - Embeds algorithm, cost, and salt in the output string (no separate
//     salt column needed)
//   - Controls the work factor via "cost" (cost 12 → 2^12 rounds)
//
// NEVER store passwords in plain text or with fast hashes (MD5, SHA-256).
// bcrypt with cost 12 takes roughly 50–250ms on commodity hardware —
// negligible for a login, brutal for an attacker.
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 = 4096 iterations)
//	 version
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. A deliberate compile-time
// constant: the cost is the dominant login-latency source and is chosen,
// not measured at runtime.
const defaultCost = 12

// bcryptInputLimit is bcrypt's hard 72-byte input ceiling. The validation
// layer accepts passwords up to 128 characters, so both Hash and Verify
// truncate consistently — the same effective behavior the algorithm
// itself applied before x/crypto started rejecting long inputs.
const bcryptInputLimit = 72

// PasswordHasher provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected in
// tests — cost 4 (the bcrypt minimum) makes a test suite with dozens of
// hash calls run in milliseconds instead of minutes.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a PasswordHasher with the production cost.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{cost: defaultCost}
}

// NewPasswordHasherWithCost creates a PasswordHasher with a custom cost.
// Tests use bcrypt.MinCost; production code should not call this.
func NewPasswordHasherWithCost(cost int) *PasswordHasher {
	return &PasswordHasher{cost: cost}
}

// Cost returns the configured work factor. The auth service uses it to
// generate its timing-normalization dummy hash at the same cost as live
// credentials.
func (p *PasswordHasher) Cost() int {
	return p.cost
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is a self-contained string like:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// Store it directly — it includes the salt and cost, and a fresh random
// salt is drawn on every call, so hashing the same password twice yields
// two different strings.
//
// An error here means the entropy source failed, which is fatal to the
// registration attempt; callers must surface it as an internal failure,
// never as a validation problem.
func (p *PasswordHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(truncateForBcrypt(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches a stored bcrypt hash.
//
// It decodes algorithm/cost/salt from the stored string, recomputes, and
// compares. bcrypt.CompareHashAndPassword uses subtle.ConstantTimeCompare
// internally, so the comparison is constant-time with respect to the
// secret.
//
// Malformed or truncated stored values return false — a verification
// failure, not a system error. A corrupted row must behave exactly like a
// wrong password at the login boundary.
func (p *PasswordHasher) Verify(plaintext, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), truncateForBcrypt(plaintext)) == nil
}

func truncateForBcrypt(plaintext string) []byte {
	b := []byte(plaintext)
	if len(b) > bcryptInputLimit {
		b = b[:bcryptInputLimit]
	}
	return b
}

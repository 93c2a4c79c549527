// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Usernames are stored case-sensitively and the database enforces
// uniqueness with a UNIQUE constraint — the service layer's pre-check is
// only a courtesy; the constraint is the real guard against two
// concurrent registrations racing on the same name.
//
// CredentialHash is the full bcrypt output string. It is self-describing
// (algorithm, cost, and salt are all encoded inside it), so there is no
// separate salt column. It is never serialized to JSON.
type User struct {
	ID             string    `json:"id"        db:"id"`
	Username       string    `json:"username"  db:"username"`
	CredentialHash string    `json:"-"         db:"credential_hash"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

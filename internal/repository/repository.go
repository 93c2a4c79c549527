// Package repository defines the storage contracts the auth core depends
// on. The service layer only ever sees these interfaces; the concrete
// SQLite implementation lives in repository/sqlite.
package repository

import (
	"context"

	"github.com/securelearn/dashboard/internal/model"
)

// UserRepository is the deliberately narrow user store contract: the
// auth core needs exactly one lookup shape and one insert, nothing else.
//
// Create MUST return apperror.UsernameTaken() when the store's UNIQUE
// constraint fires. The service's lookup-then-insert sequence is not
// atomic, so the constraint — not a lock — is the real uniqueness guard
// against two concurrent registrations; translating the violation is
// what turns that race into a recoverable, user-facing error.
//
// FindByUsername matches exactly (usernames are stored case-sensitively)
// and returns apperror.ErrNotFound when no row matches.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

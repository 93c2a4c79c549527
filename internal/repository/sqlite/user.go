package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/securelearn/dashboard/internal/apperror"
	"github.com/securelearn/dashboard/internal/model"
	"github.com/securelearn/dashboard/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user record, generating the internal id and
// timestamp.
//
// UNIQUENESS AT THE STORE:
// The service's "is this username free?" pre-check and this INSERT are
// not one atomic step — two concurrent registrations for the same name
// can both pass the pre-check. The UNIQUE constraint on username decides
// the race, and the loser's constraint violation is translated to
// apperror.UsernameTaken() so the caller shows the same recoverable
// error it would for a sequential duplicate. Any other failure is a
// plain storage error.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, credential_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.CredentialHash,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.UsernameTaken()
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// FindByUsername retrieves a user by exact, case-sensitive username.
// Returns apperror.ErrNotFound if no user exists with that name.
func (db *DB) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, credential_hash, created_at
		 FROM users WHERE username = ?`,
		username,
	).Scan(
		&u.ID,
		&u.Username,
		&u.CredentialHash,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlite: user %q: %w", username, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("sqlite: finding user %q: %w", username, err)
	}

	return &u, nil
}

// isUniqueViolation reports whether err is SQLite's UNIQUE constraint
// failure. modernc.org/sqlite returns *sqlite.Error carrying the
// extended result code (SQLITE_CONSTRAINT_UNIQUE = 2067).
func isUniqueViolation(err error) bool {
	var liteErr *sqlite3.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	return liteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE ||
		liteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
}

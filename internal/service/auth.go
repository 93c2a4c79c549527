// Package service — authentication business logic.
//
// AuthService is the business logic layer for authentication. It sits
// between the HTTP handlers and the repository/auth/session utilities:
//
//	handlers (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                ↘ PasswordHasher (bcrypt)
//	                ↘ session.Manager (lifecycle transitions)
//
// KEY RESPONSIBILITIES:
//   - Validate registration input in a fixed order, most specific first
//   - Orchestrate the credential check with normalized timing
//   - Delegate every session transition to the session manager
//   - Map every failure into the apperror taxonomy before it can leak
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/securelearn/dashboard/internal/apperror"
	"github.com/securelearn/dashboard/internal/auth"
	"github.com/securelearn/dashboard/internal/model"
	"github.com/securelearn/dashboard/internal/repository"
	"github.com/securelearn/dashboard/internal/session"
)

// Username and password validation bounds.
const (
	usernameMinLen = 3
	usernameMaxLen = 20
	passwordMinLen = 8
	passwordMaxLen = 128
)

// usernamePattern is the full charset contract: letters, digits,
// underscore, nothing else. Anchored so a valid prefix can't smuggle
// trailing garbage through.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// reservedUsernames can never be registered, compared case-insensitively
// so "Admin" and "ADMIN" are rejected along with "admin".
var reservedUsernames = map[string]struct{}{
	"admin":         {},
	"root":          {},
	"administrator": {},
	"system":        {},
	"guest":         {},
	"user":          {},
	"test":          {},
}

// AuthService handles registration, login, and logout.
type AuthService struct {
	users    repository.UserRepository
	hasher   *auth.PasswordHasher
	sessions *session.Manager
	logger   *slog.Logger

	// dummyHash is a real bcrypt hash at the production cost, generated
	// once at construction. Login verifies unknown usernames against it
	// so the missing-user path costs the same bcrypt work as the
	// wrong-password path — response latency cannot reveal whether a
	// username exists.
	dummyHash string
}

// NewAuthService creates an AuthService with all required dependencies.
// It fails only if the dummy hash cannot be generated, which means the
// entropy source is broken and the process should not serve logins.
func NewAuthService(
	users repository.UserRepository,
	hasher *auth.PasswordHasher,
	sessions *session.Manager,
	logger *slog.Logger,
) (*AuthService, error) {
	dummy, err := hasher.Hash("timing-normalization-placeholder")
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating dummy hash: %w", err)
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// Register creates a new account from the registration form.
//
// VALIDATION ORDER (fixed, most specific and least leaking first):
// username format → password format → password match → uniqueness. The
// store is only queried once everything local has passed, so malformed
// input never costs a database round trip.
//
// The uniqueness pre-check and the INSERT are not atomic; a concurrent
// duplicate that slips past the pre-check is caught by the store's
// UNIQUE constraint and still comes back as UsernameTaken.
func (s *AuthService) Register(ctx context.Context, form model.RegisterForm) error {
	if err := validateUsername(form.Username); err != nil {
		return err
	}
	if err := validatePassword(form.Password1); err != nil {
		return err
	}
	if form.Password1 != form.Password2 {
		return apperror.ValidationFailed("password2", "Passwords do not match.")
	}

	if _, err := s.users.FindByUsername(ctx, form.Username); err == nil {
		return apperror.UsernameTaken()
	} else if !errors.Is(err, apperror.ErrNotFound) {
		s.logger.Error("registration uniqueness check failed",
			slog.String("error", err.Error()),
		)
		return apperror.Internal(err)
	}

	hash, err := s.hasher.Hash(form.Password1)
	if err != nil {
		// Hashing failure (entropy exhaustion) is fatal to this attempt
		// and must stay distinguishable from "username taken" — an
		// internal category, never a conflict.
		s.logger.Error("password hashing failed",
			slog.String("error", err.Error()),
		)
		return apperror.Internal(err)
	}

	user := &model.User{
		Username:       form.Username,
		CredentialHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrUsernameTaken) {
			// Lost the race to a concurrent registration.
			return apperror.UsernameTaken()
		}
		s.logger.Error("user insert failed",
			slog.String("error", err.Error()),
		)
		return apperror.Internal(err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return nil
}

// Login verifies credentials and, on success, performs the
// ANONYMOUS → AUTHENTICATED transition on the caller's session. The
// returned session carries the regenerated id.
//
// TIMING NORMALIZATION:
// Both failure paths — unknown username and wrong password — execute
// exactly one bcrypt verification (the unknown-username path against the
// precomputed dummy hash) and return the same undifferentiated
// InvalidCredentials error.
func (s *AuthService) Login(ctx context.Context, sess *session.Session, username, password string) (*session.Session, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Burn the same bcrypt work a real comparison would.
			s.hasher.Verify(password, s.dummyHash)
			return nil, apperror.InvalidCredentials()
		}
		s.logger.Error("login lookup failed",
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal(err)
	}

	if !s.hasher.Verify(password, user.CredentialHash) {
		return nil, apperror.InvalidCredentials()
	}

	authed, err := s.sessions.Authenticate(ctx, sess, user.Username)
	if err != nil {
		s.logger.Error("session transition failed after verified login",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal(err)
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return authed, nil
}

// Logout destroys the caller's session. Always succeeds: destroying a
// session that no longer resolves is a no-op, so calling Logout twice —
// or with no authenticated session at all — is harmless.
func (s *AuthService) Logout(ctx context.Context, sess *session.Session) {
	if sess == nil {
		return
	}
	if err := s.sessions.Destroy(ctx, sess.ID); err != nil {
		// Logout must not fail user-visibly; the cookie is cleared by
		// the handler regardless, and an orphan record ages out.
		s.logger.Error("session destroy failed",
			slog.String("error", err.Error()),
		)
	}
}

func validateUsername(username string) error {
	if len(username) < usernameMinLen || len(username) > usernameMaxLen {
		return apperror.ValidationFailed("username",
			"Username must be 3-20 characters long.")
	}
	if !usernamePattern.MatchString(username) {
		return apperror.ValidationFailed("username",
			"Username may only contain letters, numbers, and underscores.")
	}
	if _, reserved := reservedUsernames[strings.ToLower(username)]; reserved {
		return apperror.ValidationFailed("username",
			"That username is not available.")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < passwordMinLen || len(password) > passwordMaxLen {
		return apperror.ValidationFailed("password1",
			"Password must be 8-128 characters long.")
	}
	return nil
}

// Package session owns the session lifecycle: creation, fixation-safe
// regeneration on login, idle-timeout rotation, and destruction.
//
// STATE MACHINE:
//
//	ANONYMOUS ──(verified credentials)──▶ AUTHENTICATED ──(logout)──▶ destroyed
//	    │   ▲                                 │   ▲
//	    └───┘                                 └───┘
//	 idle rotation                         idle rotation
//
// Every state-changing transition that keeps the session alive issues a
// NEW session id. The login transition in particular must never reuse
// the pre-login id — otherwise an attacker who planted a known id before
// the victim logged in would hold an authenticated session (fixation).
//
// NO AMBIENT STATE:
// There is no process-global "current session". A Session is a value
// retrieved from an injected Store by id, threaded through explicitly.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/securelearn/dashboard/internal/auth"
)

// DefaultIdleThreshold is how long a session id stays valid without
// rotation. Any request that touches the session after this interval
// gets a fresh id with all other state preserved.
const DefaultIdleThreshold = 30 * time.Minute

// DefaultLifetime bounds the absolute age of a session. Stores treat a
// record past ExpiresAt as absent.
const DefaultLifetime = 12 * time.Hour

// idBytes is the entropy per session id: 32 bytes = 256 bits, base64url
// encoded. Ids must be unguessable, which is why they come from
// crypto/rand and not from a k-sortable id generator.
const idBytes = 32

// Session is one browser's session record.
//
// Username is meaningful only while Authenticated is true; an anonymous
// session carries the empty string. CSRFToken is the single live
// anti-forgery token bound to this session.
type Session struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	LastRotatedAt time.Time `json:"last_rotated_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username,omitempty"`
	CSRFToken     string    `json:"csrf_token"`
}

// Manager drives the session state machine over an injected Store.
type Manager struct {
	store         Store
	idleThreshold time.Duration
	lifetime      time.Duration
	logger        *slog.Logger

	// now is a test seam; production code always uses time.Now.
	now func() time.Time
}

// NewManager creates a Manager with the given store and thresholds.
// Zero durations fall back to the defaults.
func NewManager(store Store, idleThreshold, lifetime time.Duration, logger *slog.Logger) *Manager {
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Manager{
		store:         store,
		idleThreshold: idleThreshold,
		lifetime:      lifetime,
		logger:        logger,
		now:           time.Now,
	}
}

// newID draws a fresh 256-bit session id.
func newID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generating id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create starts a new ANONYMOUS session with a fresh id and a freshly
// bound CSRF token, and persists it.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	token, err := auth.NewCSRFToken()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	now := m.now()
	s := &Session{
		ID:            id,
		CreatedAt:     now,
		LastRotatedAt: now,
		ExpiresAt:     now.Add(m.lifetime),
		CSRFToken:     token,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("session: saving new session: %w", err)
	}
	return s, nil
}

// Get resolves a session id. A destroyed, expired, or never-issued id
// returns (nil, nil) — the caller starts over with Create.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: loading session: %w", err)
	}
	return s, nil
}

// Touch applies idle rotation as a request side effect: if the session
// has not rotated within the idle threshold, it gets a new id with all
// other state preserved. Returns the (possibly re-keyed) session.
//
// Rotation is last-write-wins by design. Two concurrent requests may
// both rotate the same session; each writes its own new id and deletes
// the shared old one, and whichever cookie reaches the browser last
// wins. Losing the other copy is not a correctness violation (§5), so no
// lock is taken.
func (m *Manager) Touch(ctx context.Context, s *Session) (*Session, error) {
	if m.now().Sub(s.LastRotatedAt) <= m.idleThreshold {
		return s, nil
	}
	rotated, err := m.rekey(ctx, s)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("session rotated after idle threshold",
		slog.Bool("authenticated", rotated.Authenticated),
	)
	return rotated, nil
}

// Authenticate performs the ANONYMOUS → AUTHENTICATED transition. Only
// the auth service calls this, and only after the credential check
// passed. The id is regenerated as part of the transition and a fresh
// CSRF token is bound, so nothing issued before login stays valid.
func (m *Manager) Authenticate(ctx context.Context, s *Session, username string) (*Session, error) {
	s.Authenticated = true
	s.Username = username
	token, err := auth.NewCSRFToken()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.CSRFToken = token

	authed, err := m.rekey(ctx, s)
	if err != nil {
		return nil, err
	}
	m.logger.Info("session authenticated",
		slog.String("username", username),
	)
	return authed, nil
}

// Destroy performs the terminal transition: the id stops resolving
// immediately and all state is gone. Destroying an id that no longer
// resolves is a no-op, which is what makes logout idempotent.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("session: destroying session: %w", err)
	}
	return nil
}

// RotateCSRF replaces the session's bound anti-forgery token and
// persists the change. Called after EVERY state-changing submission —
// success or failure — so a captured token is dead after one use.
func (m *Manager) RotateCSRF(ctx context.Context, s *Session) error {
	token, err := auth.NewCSRFToken()
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	s.CSRFToken = token
	if err := m.store.Save(ctx, s); err != nil {
		return fmt.Errorf("session: saving rotated csrf token: %w", err)
	}
	return nil
}

// rekey moves the session to a freshly generated id: save under the new
// id first, then drop the old one. If the delete races another rotation
// the worst case is an orphan record that ages out at ExpiresAt.
func (m *Manager) rekey(ctx context.Context, s *Session) (*Session, error) {
	oldID := s.ID
	id, err := newID()
	if err != nil {
		return nil, err
	}
	s.ID = id
	s.LastRotatedAt = m.now()

	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("session: saving rekeyed session: %w", err)
	}
	if err := m.store.Delete(ctx, oldID); err != nil {
		return nil, fmt.Errorf("session: dropping old session id: %w", err)
	}
	return s, nil
}

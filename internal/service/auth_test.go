package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/securelearn/dashboard/internal/apperror"
	"github.com/securelearn/dashboard/internal/auth"
	"github.com/securelearn/dashboard/internal/model"
	"github.com/securelearn/dashboard/internal/session"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory implementation of repository.UserRepository.
// Using a fake (not a mock framework) keeps tests dependency-free and easy
// to read — you can see exactly what the fake does.
type fakeUserRepo struct {
	users map[string]*model.User // keyed by username
	// findCalls counts lookups so tests can assert the store was never
	// touched for locally invalid input.
	findCalls int
	// set to a non-nil error to simulate a storage failure
	createErr error
	findErr   error
	// set to force Create to report a unique violation even though the
	// pre-check saw nothing — the concurrent-registration race.
	createConflict bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.createConflict {
		return apperror.UsernameTaken()
	}
	if _, exists := f.users[user.Username]; exists {
		return apperror.UsernameTaken()
	}
	user.ID = "user-" + user.Username
	user.CreatedAt = time.Now()
	copied := *user
	f.users[user.Username] = &copied
	return nil
}

func (f *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuthService returns an AuthService wired with a fake repo, a
// cost-4 hasher, and a memory-backed session manager.
func newTestAuthService(t *testing.T, repo *fakeUserRepo) (*AuthService, *session.Manager) {
	t.Helper()

	sessions := session.NewManager(session.NewMemoryStore(), 0, 0, testLogger())
	svc, err := NewAuthService(repo, auth.NewPasswordHasherWithCost(bcrypt.MinCost), sessions, testLogger())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc, sessions
}

func registerForm(username, pw1, pw2 string) model.RegisterForm {
	return model.RegisterForm{Username: username, Password1: pw1, Password2: pw2}
}

// =========================================================================
// Register TESTS
// =========================================================================

func TestRegister_Success(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)

	if err := svc.Register(context.Background(), registerForm("alice", "Passw0rd!", "Passw0rd!")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	stored, ok := repo.users["alice"]
	if !ok {
		t.Fatal("Register() did not persist the user")
	}
	if stored.CredentialHash == "" || stored.CredentialHash == "Passw0rd!" {
		t.Error("Register() stored a missing or plaintext credential")
	}
	if !strings.HasPrefix(stored.CredentialHash, "$2") {
		t.Errorf("stored credential does not look like bcrypt: %q", stored.CredentialHash)
	}
}

func TestRegister_UsernameValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
	}{
		{"too short", "ab"},
		{"too long", strings.Repeat("a", 21)},
		{"illegal characters", "alice!"},
		{"spaces", "al ice"},
		{"sql injection attempt", "admin' OR '1'='1"},
		{"reserved: admin", "admin"},
		{"reserved regardless of case", "ADMIN"},
		{"reserved: root", "root"},
		{"reserved: guest", "Guest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUserRepo()
			svc, _ := newTestAuthService(t, repo)

			err := svc.Register(context.Background(), registerForm(tt.username, "longenough1", "longenough1"))
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register(%q) error = %v, want ErrValidation", tt.username, err)
			}
			// Locally invalid input must never reach the store.
			if repo.findCalls != 0 {
				t.Errorf("Register(%q) queried the store %d times", tt.username, repo.findCalls)
			}
		})
	}
}

func TestRegister_PasswordValidation(t *testing.T) {
	tests := []struct {
		name string
		pw1  string
		pw2  string
	}{
		{"too short", "short7c", "short7c"},
		{"too long", strings.Repeat("a", 129), strings.Repeat("a", 129)},
		{"mismatch", "longenough1", "longenough2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUserRepo()
			svc, _ := newTestAuthService(t, repo)

			err := svc.Register(context.Background(), registerForm("validUser1", tt.pw1, tt.pw2))
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
			if repo.findCalls != 0 {
				t.Error("invalid password should not cost a store query")
			}
		})
	}
}

func TestRegister_ValidationOrder(t *testing.T) {
	// Username format is checked before password format: with both
	// invalid, the username error is the one reported.
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)

	err := svc.Register(context.Background(), registerForm("ab", "short", "short"))

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Register() error = %v, want *AppError", err)
	}
	if appErr.Field != "username" {
		t.Errorf("reported field = %q, want %q (username checked first)", appErr.Field, "username")
	}
}

func TestRegister_SecondAttemptIsUsernameTaken(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	if err := svc.Register(ctx, registerForm("validUser1", "longenough1", "longenough1")); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	err := svc.Register(ctx, registerForm("validUser1", "longenough1", "longenough1"))
	if !errors.Is(err, apperror.ErrUsernameTaken) {
		t.Errorf("second Register() error = %v, want ErrUsernameTaken", err)
	}
}

func TestRegister_InsertRaceIsUsernameTaken(t *testing.T) {
	// The pre-check saw a free username but the INSERT lost to a
	// concurrent registration: the constraint violation surfaces as the
	// same recoverable UsernameTaken, not as an internal error.
	repo := newFakeUserRepo()
	repo.createConflict = true
	svc, _ := newTestAuthService(t, repo)

	err := svc.Register(context.Background(), registerForm("racer", "longenough1", "longenough1"))
	if !errors.Is(err, apperror.ErrUsernameTaken) {
		t.Errorf("Register() error = %v, want ErrUsernameTaken", err)
	}
}

func TestRegister_StorageFailureIsInternal(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = errors.New("disk I/O error on INSERT INTO users")
	svc, _ := newTestAuthService(t, repo)

	err := svc.Register(context.Background(), registerForm("unlucky", "longenough1", "longenough1"))
	if !errors.Is(err, apperror.ErrInternal) {
		t.Fatalf("Register() error = %v, want ErrInternal", err)
	}
	// The user-facing message must not carry the storage detail.
	if msg := apperror.UserMessage(err); strings.Contains(msg, "INSERT") {
		t.Errorf("user message leaks storage detail: %q", msg)
	}
}

func TestNewAuthService_FailsWhenHashingImpossible(t *testing.T) {
	// An out-of-range cost makes bcrypt refuse to hash — the service
	// must fail construction rather than serve logins without its
	// timing-normalization dummy hash.
	sessions := session.NewManager(session.NewMemoryStore(), 0, 0, testLogger())
	_, err := NewAuthService(newFakeUserRepo(), auth.NewPasswordHasherWithCost(99), sessions, testLogger())
	if err == nil {
		t.Fatal("NewAuthService() should fail with an invalid bcrypt cost")
	}
}

// =========================================================================
// Login TESTS
// =========================================================================

// loginFixture registers alice and returns a fresh anonymous session.
func loginFixture(t *testing.T) (*AuthService, *session.Manager, *session.Session) {
	t.Helper()
	repo := newFakeUserRepo()
	svc, sessions := newTestAuthService(t, repo)
	ctx := context.Background()

	if err := svc.Register(ctx, registerForm("alice", "Passw0rd!", "Passw0rd!")); err != nil {
		t.Fatalf("setup: Register() error = %v", err)
	}
	sess, err := sessions.Create(ctx)
	if err != nil {
		t.Fatalf("setup: Create() error = %v", err)
	}
	return svc, sessions, sess
}

func TestLogin_Success_RegeneratesSessionID(t *testing.T) {
	svc, sessions, sess := loginFixture(t)
	ctx := context.Background()
	preLoginID := sess.ID

	authed, err := svc.Login(ctx, sess, "alice", "Passw0rd!")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if !authed.Authenticated {
		t.Error("session not authenticated after successful login")
	}
	if authed.Username != "alice" {
		t.Errorf("session username = %q, want %q", authed.Username, "alice")
	}
	if authed.ID == preLoginID {
		t.Error("login must issue a new session id (fixation)")
	}
	if old, _ := sessions.Get(ctx, preLoginID); old != nil {
		t.Error("pre-login session id still resolves")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, sess := loginFixture(t)

	_, err := svc.Login(context.Background(), sess, "alice", "wrong")
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_UnknownUsername(t *testing.T) {
	svc, _, sess := loginFixture(t)

	_, err := svc.Login(context.Background(), sess, "mallory", "Passw0rd!")
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_FailuresAreUndifferentiated(t *testing.T) {
	// Unknown username and wrong password must be byte-identical at the
	// boundary: same category, same user-facing message.
	svc, _, sess := loginFixture(t)
	ctx := context.Background()

	_, errUnknown := svc.Login(ctx, sess, "mallory", "whatever123")
	_, errWrongPW := svc.Login(ctx, sess, "alice", "whatever123")

	if apperror.UserMessage(errUnknown) != apperror.UserMessage(errWrongPW) {
		t.Errorf("messages differ: %q vs %q",
			apperror.UserMessage(errUnknown), apperror.UserMessage(errWrongPW))
	}
}

func TestLogin_TimingIndistinguishable(t *testing.T) {
	if testing.Short() {
		t.Skip("timing measurement skipped in -short mode")
	}

	svc, _, sess := loginFixture(t)
	ctx := context.Background()

	// Median latency of each failure path. Both run one bcrypt compare
	// (the unknown-username path against the dummy hash), so even at
	// test cost the medians should be close; the bound is generous to
	// keep CI machines from flaking.
	const rounds = 16
	median := func(username string) time.Duration {
		samples := make([]time.Duration, 0, rounds)
		for i := 0; i < rounds; i++ {
			start := time.Now()
			_, _ = svc.Login(ctx, sess, username, "whatever123")
			samples = append(samples, time.Since(start))
		}
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		return samples[rounds/2]
	}

	existing := median("alice")   // wrong password
	missing := median("mallory")  // unknown username

	slower, faster := existing, missing
	if missing > existing {
		slower, faster = missing, existing
	}
	if faster <= 0 || slower > 3*faster {
		t.Errorf("login latency differs by path: existing=%v missing=%v", existing, missing)
	}
}

func TestLogin_StorageFailureIsInternal(t *testing.T) {
	repo := newFakeUserRepo()
	repo.findErr = errors.New("database is on fire")
	svc, sessions := newTestAuthService(t, repo)

	sess, _ := sessions.Create(context.Background())
	_, err := svc.Login(context.Background(), sess, "alice", "Passw0rd!")
	if !errors.Is(err, apperror.ErrInternal) {
		t.Errorf("Login() error = %v, want ErrInternal", err)
	}
}

// =========================================================================
// Logout TESTS
// =========================================================================

func TestLogout_DestroysSession(t *testing.T) {
	svc, sessions, sess := loginFixture(t)
	ctx := context.Background()

	authed, err := svc.Login(ctx, sess, "alice", "Passw0rd!")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	svc.Logout(ctx, authed)

	if got, _ := sessions.Get(ctx, authed.ID); got != nil {
		t.Error("session id still resolves after logout")
	}
}

func TestLogout_Idempotent(t *testing.T) {
	svc, _, sess := loginFixture(t)
	ctx := context.Background()

	// Twice in a row, then with no session at all — all no-ops.
	svc.Logout(ctx, sess)
	svc.Logout(ctx, sess)
	svc.Logout(ctx, nil)
}

// =========================================================================
// END-TO-END SCENARIO (§ register → bad login → good login)
// =========================================================================

func TestScenario_RegisterThenLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc, sessions := newTestAuthService(t, repo)
	ctx := context.Background()

	if err := svc.Register(ctx, registerForm("alice", "Passw0rd!", "Passw0rd!")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	sess, err := sessions.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	anonymousID := sess.ID

	if _, err := svc.Login(ctx, sess, "alice", "wrong"); !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("login with wrong password: error = %v, want ErrInvalidCredentials", err)
	}

	authed, err := svc.Login(ctx, sess, "alice", "Passw0rd!")
	if err != nil {
		t.Fatalf("login with correct password: error = %v", err)
	}
	if !authed.Authenticated {
		t.Error("authenticated = false after successful login")
	}
	if authed.ID == anonymousID {
		t.Error("successful login did not issue a new session id")
	}
}

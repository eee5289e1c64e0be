package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/apperr"
	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/database"
	"github.com/elskow/backoffice/internal/remember"
	"github.com/elskow/backoffice/internal/session"
	"github.com/elskow/backoffice/internal/throttle"
)

type testEnv struct {
	svc      *Service
	users    *credential.MockRepository
	sessions *session.Manager
	remember *remember.MockRepository
	now      time.Time
	user     *credential.User
}

var client = remember.Client{IP: "10.0.0.1", UserAgent: "test"}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:    credential.NewMockRepository(),
		remember: remember.NewMockRepository(),
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }
	cfg := &config.SecurityConfig{
		AppSecret:          "0123456789abcdef0123456789abcdef",
		RememberCookieName: "remember",
		RememberLifetime:   336 * time.Hour,
		LoginMaxAttempts:   7,
		LoginLockWindow:    15 * time.Minute,
	}
	log := zap.NewNop()
	hasher := credential.NewHasherWithCost(bcrypt.MinCost)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	env.sessions = session.NewManager(session.NewRedisStore(rdb, "t:", time.Hour), session.NewCookieCodec(cfg.AppSecret), log, "sid")

	th := throttle.New(cfg, log, throttle.NewMockRepository(), throttle.WithClock(clock))
	vault := remember.NewVault(cfg, log, env.remember, env.users, database.NopTransactor{}, remember.WithClock(clock))
	env.svc = NewService(log, env.users, hasher, th, vault, env.sessions, acl.NewResolver(env.users))

	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)
	env.user = env.users.Seed(credential.User{
		ID:       42,
		Email:    "boss@example.com",
		Phone:    "79991234567",
		PassHash: hash,
	}, "manager")
	return env
}

func TestAttemptLogin_Success(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		identifier string
	}{
		{name: "phone digits", identifier: "79991234567"},
		{name: "formatted domestic phone", identifier: "8 (999) 123-45-67"},
		{name: "email any case", identifier: " Boss@Example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, err := env.svc.AttemptLogin(context.Background(), tt.identifier, "correct-horse", "10.0.0.1")
			require.NoError(t, err)
			assert.Equal(t, int64(42), uid)
		})
	}
}

func TestAttemptLogin_LockoutScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for i := 0; i < 7; i++ {
		_, err := env.svc.AttemptLogin(ctx, "79991234567", "wrongpass", "10.0.0.1")
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
	}

	_, err := env.svc.AttemptLogin(ctx, "79991234567", "correct-horse", "10.0.0.1")
	assert.ErrorIs(t, err, ErrLocked, "correct password within the lock window")
	assert.Equal(t, "invalid credentials", apperr.PublicMessage(apperr.KindOf(err)))

	// another origin is throttled separately
	uid, err := env.svc.AttemptLogin(ctx, "79991234567", "correct-horse", "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, int64(42), uid)

	env.now = env.now.Add(15 * time.Minute)
	uid, err = env.svc.AttemptLogin(ctx, "79991234567", "correct-horse", "10.0.0.1")
	require.NoError(t, err, "lock window elapsed")
	assert.Equal(t, int64(42), uid)

	// success cleared the counter
	_, err = env.svc.AttemptLogin(ctx, "79991234567", "wrongpass", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAttemptLogin_UnknownIdentifierCountsLikeWrongPassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for i := 0; i < 7; i++ {
		_, err := env.svc.AttemptLogin(ctx, "70000000000", "whatever", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := env.svc.AttemptLogin(ctx, "70000000000", "whatever", "10.0.0.1")
	assert.ErrorIs(t, err, ErrLocked)
}

func TestAttemptLogin_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.users.SetStatus(ctx, 42, credential.StatusBlocked))

	_, err := env.svc.AttemptLogin(ctx, "79991234567", "correct-horse", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "blocked user")

	_, err = env.svc.AttemptLogin(ctx, "", "correct-horse", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "empty identifier")
}

func TestLogin_BindsSessionAndIssuesRemember(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	sess := env.sessions.Start(ctx, "")
	sess.Data.CSRF = "guest-token"
	guestID := sess.ID

	res, err := env.svc.Login(ctx, sess, "79991234567", "correct-horse", client)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.UserID)
	require.NotNil(t, res.Remember)
	assert.NotEqual(t, guestID, sess.ID, "session id regenerated")
	assert.Empty(t, sess.Data.CSRF, "csrf token reset on privilege change")
	assert.Equal(t, 1, env.remember.Active(42, env.now))

	_, err = env.svc.Login(ctx, env.sessions.Start(ctx, ""), "79991234567", "nope", client)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestIdentify(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		env := newTestEnv(t)
		sc, rotated, err := env.svc.Identify(ctx, env.sessions.Start(ctx, ""), "", client)
		require.NoError(t, err)
		assert.Nil(t, rotated)
		assert.False(t, sc.Authenticated())
		assert.Equal(t, acl.Role(""), sc.Role())
	})

	t.Run("interactive session", func(t *testing.T) {
		env := newTestEnv(t)
		sess := env.sessions.Start(ctx, "")
		sess.Data.UserID = 42

		sc, rotated, err := env.svc.Identify(ctx, sess, "", client)
		require.NoError(t, err)
		assert.Nil(t, rotated)
		assert.True(t, sc.Authenticated())
		assert.Equal(t, acl.RoleManager, sc.Role())
	})

	t.Run("restored from remember cookie", func(t *testing.T) {
		env := newTestEnv(t)
		res, err := env.svc.Login(ctx, env.sessions.Start(ctx, ""), "79991234567", "correct-horse", client)
		require.NoError(t, err)

		fresh := env.sessions.Start(ctx, "")
		sc, rotated, err := env.svc.Identify(ctx, fresh, res.Remember.Value, client)
		require.NoError(t, err)
		require.NotNil(t, rotated)
		assert.NotEqual(t, res.Remember.Value, rotated.Value)
		assert.Equal(t, int64(42), sc.UserID)
		assert.Equal(t, int64(42), fresh.Data.UserID)

		replay, again, err := env.svc.Identify(ctx, env.sessions.Start(ctx, ""), res.Remember.Value, client)
		require.NoError(t, err)
		assert.Nil(t, again)
		assert.False(t, replay.Authenticated())
	})

	t.Run("blocked user loses interactive session", func(t *testing.T) {
		env := newTestEnv(t)
		sess := env.sessions.Start(ctx, "")
		sess.Data.UserID = 42
		require.NoError(t, env.users.SetStatus(ctx, 42, credential.StatusBlocked))

		sc, _, err := env.svc.Identify(ctx, sess, "", client)
		require.NoError(t, err)
		assert.False(t, sc.Authenticated())
		assert.Zero(t, sess.Data.UserID)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	sess := env.sessions.Start(ctx, "")
	res, err := env.svc.Login(ctx, sess, "79991234567", "correct-horse", client)
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, sess, res.Remember.Value))
	assert.Zero(t, env.remember.Active(42, env.now))
	assert.False(t, sess.Authenticated())

	assert.NoError(t, env.svc.Logout(ctx, env.sessions.Start(ctx, ""), "garbage"))
}

func TestSecurityContextInContext(t *testing.T) {
	sc := &SecurityContext{UserID: 1, UserRole: acl.RoleAdmin}
	ctx := WithSecurityContext(context.Background(), sc)
	assert.Same(t, sc, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}

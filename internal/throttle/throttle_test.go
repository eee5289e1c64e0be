package throttle

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/elskow/backoffice/internal/config"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestThrottle(t *testing.T) (*Throttle, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := &config.SecurityConfig{LoginMaxAttempts: 7, LoginLockWindow: 15 * time.Minute}
	return New(cfg, zap.NewNop(), NewMockRepository(), WithClock(c.now)), c
}

func TestThrottle_LocksAtThreshold(t *testing.T) {
	ctx := context.Background()
	th, _ := newTestThrottle(t)
	key := Key("79991234567", "10.0.0.1")

	for i := 1; i <= 6; i++ {
		locked, err := th.RecordFailure(ctx, key)
		require.NoError(t, err)
		assert.False(t, locked, "attempt %d", i)
	}

	locked, err := th.RecordFailure(ctx, key)
	require.NoError(t, err)
	assert.True(t, locked)

	isLocked, err := th.IsLocked(ctx, key)
	require.NoError(t, err)
	assert.True(t, isLocked)

	other, err := th.IsLocked(ctx, Key("79991234567", "10.0.0.2"))
	require.NoError(t, err)
	assert.False(t, other, "a different origin has its own counter")
}

func TestThrottle_LockExpires(t *testing.T) {
	ctx := context.Background()
	th, c := newTestThrottle(t)
	key := Key("79991234567", "10.0.0.1")

	for i := 0; i < 7; i++ {
		_, err := th.RecordFailure(ctx, key)
		require.NoError(t, err)
	}

	c.advance(15*time.Minute - time.Second)
	locked, err := th.IsLocked(ctx, key)
	require.NoError(t, err)
	assert.True(t, locked)

	c.advance(time.Second)
	locked, err = th.IsLocked(ctx, key)
	require.NoError(t, err)
	assert.False(t, locked, "lock is honored only while now < lock_until")

	// the counter is still at the threshold, so one more failure relocks
	relocked, err := th.RecordFailure(ctx, key)
	require.NoError(t, err)
	assert.True(t, relocked)
}

func TestThrottle_Clear(t *testing.T) {
	ctx := context.Background()
	th, _ := newTestThrottle(t)
	key := Key("a@example.com", "10.0.0.1")

	for i := 0; i < 7; i++ {
		_, err := th.RecordFailure(ctx, key)
		require.NoError(t, err)
	}
	require.NoError(t, th.Clear(ctx, key))

	locked, err := th.IsLocked(ctx, key)
	require.NoError(t, err)
	assert.False(t, locked)

	relocked, err := th.RecordFailure(ctx, key)
	require.NoError(t, err)
	assert.False(t, relocked)
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestRepository_RecordFailureIsSingleUpsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(15 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO login_attempts (key_str, attempts, last_try_at, lock_until)") +
		".*" + regexp.QuoteMeta("ON CONFLICT (key_str) DO UPDATE SET") +
		".*" + regexp.QuoteMeta("attempts = login_attempts.attempts + 1")).
		WithArgs("k:1.2.3.4", now, nil, int64(7), until).
		WillReturnRows(sqlmock.NewRows([]string{"key_str", "attempts", "last_try_at", "lock_until"}).
			AddRow("k:1.2.3.4", 7, now, until))

	rec, err := repo.RecordFailure(context.Background(), "k:1.2.3.4", now, 7, until)
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Attempts)
	require.NotNil(t, rec.LockUntil)
	assert.True(t, rec.LockUntil.Equal(until))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetMissingKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "login_attempts" WHERE key_str = $1`)).
		WithArgs("nobody:1.2.3.4", 1).
		WillReturnRows(sqlmock.NewRows([]string{"key_str", "attempts", "last_try_at", "lock_until"}))

	rec, err := repo.Get(context.Background(), "nobody:1.2.3.4")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := NewRedisStore(rdb, "bo:", 2*time.Hour)
	return NewManager(store, NewCookieCodec(testSecret), zap.NewNop(), "sid"), mr
}

func TestCookieCodec(t *testing.T) {
	codec := NewCookieCodec(testSecret)

	value, err := codec.Encode("abc-123")
	require.NoError(t, err)

	id, err := codec.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)

	_, err = NewCookieCodec("another-secret-another-secret-xx").Decode(value)
	assert.ErrorIs(t, err, ErrInvalidCookie)

	_, err = codec.Decode("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidCookie)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{ID: "forged"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = codec.Decode(unsigned)
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestManager_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)

	s := m.Start(ctx, "")
	assert.True(t, s.New)
	assert.False(t, s.Authenticated())

	s.Data.UserID = 42
	s.Data.CSRF = "token"
	require.NoError(t, m.Save(ctx, s))
	assert.Equal(t, 2*time.Hour, mr.TTL("bo:sess:"+s.ID))

	cookie, err := m.Cookie(s, false)
	require.NoError(t, err)
	assert.True(t, cookie.HttpOnly)

	loaded := m.Start(ctx, cookie.Value)
	assert.False(t, loaded.New)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, int64(42), loaded.Data.UserID)
	assert.Equal(t, "token", loaded.Data.CSRF)
}

func TestManager_IdleExpiry(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)

	s := m.Start(ctx, "")
	s.Data.UserID = 42
	require.NoError(t, m.Save(ctx, s))
	cookie, err := m.Cookie(s, false)
	require.NoError(t, err)

	mr.FastForward(2*time.Hour + time.Second)

	loaded := m.Start(ctx, cookie.Value)
	assert.True(t, loaded.New)
	assert.NotEqual(t, s.ID, loaded.ID)
	assert.False(t, loaded.Authenticated())
}

func TestManager_RegenerateDropsOldID(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)

	s := m.Start(ctx, "")
	require.NoError(t, m.Save(ctx, s))
	oldID := s.ID

	s.Data.UserID = 7
	require.NoError(t, m.Regenerate(ctx, s))
	assert.NotEqual(t, oldID, s.ID)
	assert.False(t, mr.Exists("bo:sess:"+oldID))
	assert.True(t, mr.Exists("bo:sess:"+s.ID))

	data, err := m.store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), data.UserID)
}

func TestManager_Destroy(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)

	s := m.Start(ctx, "")
	s.Data.UserID = 7
	require.NoError(t, m.Save(ctx, s))
	oldID := s.ID

	require.NoError(t, m.Destroy(ctx, s))
	assert.False(t, mr.Exists("bo:sess:"+oldID))
	assert.True(t, s.New)
	assert.Zero(t, s.Data.UserID)
}

func TestManager_ForgedIDIsIgnored(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	loaded := m.Start(ctx, "victim-session-id")
	assert.True(t, loaded.New)
	assert.NotEqual(t, "victim-session-id", loaded.ID)
}

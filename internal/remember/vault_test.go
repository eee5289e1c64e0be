package remember

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/database"
)

type fixture struct {
	vault *Vault
	repo  *MockRepository
	users *credential.MockRepository
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  NewMockRepository(),
		users: credential.NewMockRepository(),
		now:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	cfg := &config.SecurityConfig{RememberCookieName: "remember", RememberLifetime: 14 * 24 * time.Hour}
	f.vault = NewVault(cfg, zap.NewNop(), f.repo, f.users, database.NopTransactor{},
		WithClock(func() time.Time { return f.now }))
	return f
}

var client = Client{IP: "10.0.0.1", UserAgent: "test-agent"}

func TestVault_IssueStoresOnlyHash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.Seed(credential.User{ID: 42, Email: "u@example.com", Phone: "79990000042"})

	issued, err := f.vault.Issue(ctx, 42, client)
	require.NoError(t, err)

	selector, validator, ok := strings.Cut(issued.Value, ":")
	require.True(t, ok)
	assert.Len(t, selector, 24)
	assert.Len(t, validator, 64)
	assert.Equal(t, f.now.Add(14*24*time.Hour), issued.ExpiresAt)

	stored, err := f.repo.FindBySelector(ctx, selector)
	require.NoError(t, err)
	assert.NotEqual(t, validator, stored.ValidatorHash)
	assert.Equal(t, hashValidator(validator), stored.ValidatorHash)
	assert.Equal(t, int64(42), stored.UserID)
}

func TestVault_RestoreRotatesAndRejectsReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.Seed(credential.User{ID: 42, Email: "u@example.com", Phone: "79990000042"})

	original, err := f.vault.Issue(ctx, 42, client)
	require.NoError(t, err)

	rotated, ok := f.vault.Restore(ctx, original.Value, client)
	require.True(t, ok)
	assert.Equal(t, int64(42), rotated.UserID)
	assert.NotEqual(t, original.Value, rotated.Value)

	_, ok = f.vault.Restore(ctx, original.Value, client)
	assert.False(t, ok, "a consumed cookie cannot be replayed")

	again, ok := f.vault.Restore(ctx, rotated.Value, client)
	require.True(t, ok)
	assert.Equal(t, 1, f.repo.Active(42, f.now))
	assert.NotEqual(t, rotated.Value, again.Value)
}

func TestVault_RestoreRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		setup       func(f *fixture, issued *Issued) string
		wantRevoked bool
	}{
		{
			name:  "malformed",
			setup: func(f *fixture, issued *Issued) string { return "garbage" },
		},
		{
			name: "unknown selector",
			setup: func(f *fixture, issued *Issued) string {
				return strings.Repeat("0", 24) + ":" + strings.Repeat("1", 64)
			},
		},
		{
			name: "expired",
			setup: func(f *fixture, issued *Issued) string {
				f.now = issued.ExpiresAt
				return issued.Value
			},
		},
		{
			name: "revoked",
			setup: func(f *fixture, issued *Issued) string {
				require.NoError(t, f.vault.Revoke(ctx, issued.Value))
				return issued.Value
			},
			wantRevoked: true,
		},
		{
			name: "validator mismatch burns the row",
			setup: func(f *fixture, issued *Issued) string {
				selector, _, _ := strings.Cut(issued.Value, ":")
				return selector + ":" + strings.Repeat("f", 64)
			},
			wantRevoked: true,
		},
		{
			name: "blocked owner",
			setup: func(f *fixture, issued *Issued) string {
				require.NoError(t, f.users.SetStatus(ctx, 42, credential.StatusBlocked))
				return issued.Value
			},
			wantRevoked: true,
		},
		{
			name: "deleted owner",
			setup: func(f *fixture, issued *Issued) string {
				require.NoError(t, f.users.Delete(ctx, 42))
				return issued.Value
			},
			wantRevoked: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.users.Seed(credential.User{ID: 42, Email: "u@example.com", Phone: "79990000042"})
			issued, err := f.vault.Issue(ctx, 42, client)
			require.NoError(t, err)

			value := tt.setup(f, issued)
			got, ok := f.vault.Restore(ctx, value, client)
			assert.False(t, ok)
			assert.Nil(t, got)

			selector, _, _ := strings.Cut(issued.Value, ":")
			stored, err := f.repo.FindBySelector(ctx, selector)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRevoked, stored.RevokedAt != nil)
		})
	}
}

func TestVault_ConcurrentRestoreSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.Seed(credential.User{ID: 42, Email: "u@example.com", Phone: "79990000042"})

	issued, err := f.vault.Issue(ctx, 42, client)
	require.NoError(t, err)

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := f.vault.Restore(ctx, issued.Value, client); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, f.repo.Active(42, f.now))
}

func TestVault_RevokeAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.Seed(credential.User{ID: 42, Email: "u@example.com", Phone: "79990000042"})

	for i := 0; i < 3; i++ {
		_, err := f.vault.Issue(ctx, 42, client)
		require.NoError(t, err)
	}
	require.Equal(t, 3, f.repo.Active(42, f.now))

	require.NoError(t, f.vault.RevokeAll(ctx, 42))
	assert.Equal(t, 0, f.repo.Active(42, f.now))
}

func TestVault_RevokeIgnoresGarbage(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.vault.Revoke(context.Background(), ""))
	assert.NoError(t, f.vault.Revoke(context.Background(), "no-colon"))
}

func TestVault_Cookie(t *testing.T) {
	f := newFixture(t)
	issued := &Issued{Value: "sel:val", ExpiresAt: f.now.Add(time.Hour)}

	c := f.vault.Cookie(issued, true)
	assert.Equal(t, "remember", c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)

	plain := f.vault.Cookie(issued, false)
	assert.False(t, plain.Secure)

	cleared := f.vault.ClearCookie(false)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Empty(t, cleared.Value)
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	s := strings.Repeat("a", 254) + "é"
	got := truncate(s, 255)
	assert.Equal(t, strings.Repeat("a", 254), got)
}

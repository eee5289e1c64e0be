package users

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/database"
)

type revoker struct {
	calls []int64
}

func (r *revoker) RevokeAll(_ context.Context, userID int64) error {
	r.calls = append(r.calls, userID)
	return nil
}

type fixture struct {
	svc     *Service
	repo    *credential.MockRepository
	revoker *revoker
	hasher  credential.Hasher
	admin   Actor
	manager Actor
	user    *credential.User
	other   *credential.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    credential.NewMockRepository(),
		revoker: &revoker{},
		hasher:  credential.NewHasherWithCost(bcrypt.MinCost),
	}
	cfg := &config.AppConfig{Security: config.SecurityConfig{PasswordMinLength: 6}}
	f.svc = NewService(cfg, zap.NewNop(), f.repo, f.hasher, acl.NewResolver(f.repo), f.revoker, database.NopTransactor{})

	admin := f.repo.Seed(credential.User{Email: "a@example.com", Phone: "79990000001", Name: "A"}, "admin")
	manager := f.repo.Seed(credential.User{Email: "m@example.com", Phone: "79990000002", Name: "M"}, "manager")
	f.user = f.repo.Seed(credential.User{Email: "u@example.com", Phone: "79990000003", Name: "U"}, "user")
	f.other = f.repo.Seed(credential.User{Email: "o@example.com", Phone: "79990000004", Name: "O"}, "manager")
	f.admin = Actor{ID: admin.ID, UserRole: acl.RoleAdmin}
	f.manager = Actor{ID: manager.ID, UserRole: acl.RoleManager}
	return f
}

func TestCreate(t *testing.T) {
	valid := CreateInput{Name: "New", Email: "new@example.com", Phone: "+7 999 111 22 33"}

	tests := []struct {
		name     string
		actor    func(f *fixture) Actor
		input    func(in CreateInput) CreateInput
		wantErr  error
		wantRole string
	}{
		{
			name:     "admin picks role",
			actor:    func(f *fixture) Actor { return f.admin },
			input:    func(in CreateInput) CreateInput { in.Role = "manager"; return in },
			wantRole: "manager",
		},
		{
			name:     "manager role is forced to user",
			actor:    func(f *fixture) Actor { return f.manager },
			input:    func(in CreateInput) CreateInput { in.Role = "admin"; return in },
			wantRole: "user",
		},
		{
			name:    "plain user is forbidden",
			actor:   func(f *fixture) Actor { return Actor{ID: f.user.ID, UserRole: acl.RoleUser} },
			input:   func(in CreateInput) CreateInput { return in },
			wantErr: acl.ErrForbidden,
		},
		{
			name:    "unknown role",
			actor:   func(f *fixture) Actor { return f.admin },
			input:   func(in CreateInput) CreateInput { in.Role = "root"; return in },
			wantErr: ErrUnknownRole,
		},
		{
			name:    "missing name",
			actor:   func(f *fixture) Actor { return f.admin },
			input:   func(in CreateInput) CreateInput { in.Name = " "; return in },
			wantErr: ErrNameRequired,
		},
		{
			name:    "bad email",
			actor:   func(f *fixture) Actor { return f.admin },
			input:   func(in CreateInput) CreateInput { in.Email = "not-an-email"; return in },
			wantErr: credential.ErrInvalidEmail,
		},
		{
			name:    "short phone",
			actor:   func(f *fixture) Actor { return f.admin },
			input:   func(in CreateInput) CreateInput { in.Phone = "12345"; return in },
			wantErr: credential.ErrInvalidPhone,
		},
		{
			name:    "weak password",
			actor:   func(f *fixture) Actor { return f.admin },
			input:   func(in CreateInput) CreateInput { in.Password = "abc"; return in },
			wantErr: credential.ErrWeakPassword,
		},
		{
			name:    "duplicate email",
			actor:   func(f *fixture) Actor { return f.admin },
			input:   func(in CreateInput) CreateInput { in.Email = "U@example.com"; return in },
			wantErr: credential.ErrUserExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			user, err := f.svc.Create(ctx, tt.actor(f), tt.input(valid))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "79991112233", user.Phone)

			grants, err := f.repo.Grants(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, grants, 1)
			assert.Equal(t, tt.wantRole, grants[0].Code)
		})
	}
}

func TestCreate_EmptyPasswordIsUnguessable(t *testing.T) {
	f := newFixture(t)
	user, err := f.svc.Create(context.Background(), f.admin, CreateInput{
		Name: "New", Email: "new@example.com", Phone: "79991112233",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.PassHash)
	assert.False(t, f.hasher.Compare(user.PassHash, ""))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("password change revokes sessions", func(t *testing.T) {
		f := newFixture(t)
		changes, err := f.svc.Update(ctx, f.manager, UpdateInput{ID: f.user.ID, Password: "new-secret"})
		require.NoError(t, err)
		assert.True(t, changes.PasswordChanged)
		assert.True(t, changes.Revoked)
		assert.Equal(t, []int64{f.user.ID}, f.revoker.calls)

		stored, err := f.repo.GetByID(ctx, f.user.ID)
		require.NoError(t, err)
		assert.True(t, f.hasher.Compare(stored.PassHash, "new-secret"))
	})

	t.Run("block revokes, unblock does not", func(t *testing.T) {
		f := newFixture(t)
		changes, err := f.svc.Update(ctx, f.admin, UpdateInput{ID: f.user.ID, Status: credential.StatusBlocked})
		require.NoError(t, err)
		assert.True(t, changes.StatusChanged)
		assert.True(t, changes.Revoked)

		changes, err = f.svc.Update(ctx, f.admin, UpdateInput{ID: f.user.ID, Status: credential.StatusActive})
		require.NoError(t, err)
		assert.True(t, changes.StatusChanged)
		assert.False(t, changes.Revoked)
		assert.Len(t, f.revoker.calls, 1)
	})

	t.Run("profile only", func(t *testing.T) {
		f := newFixture(t)
		changes, err := f.svc.Update(ctx, f.manager, UpdateInput{ID: f.user.ID, Name: "Renamed", Email: " NEW@example.com "})
		require.NoError(t, err)
		assert.Equal(t, Changes{}, *changes)
		assert.Empty(t, f.revoker.calls)

		stored, err := f.repo.GetByID(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", stored.Name)
		assert.Equal(t, "new@example.com", stored.Email)
		assert.Equal(t, "79990000003", stored.Phone)
	})

	tests := []struct {
		name    string
		actor   func(f *fixture) Actor
		input   func(f *fixture) UpdateInput
		wantErr error
	}{
		{
			name:    "manager on another manager",
			actor:   func(f *fixture) Actor { return f.manager },
			input:   func(f *fixture) UpdateInput { return UpdateInput{ID: f.other.ID, Password: "new-secret"} },
			wantErr: ErrTargetProtected,
		},
		{
			name:    "manager on admin",
			actor:   func(f *fixture) Actor { return f.manager },
			input:   func(f *fixture) UpdateInput { return UpdateInput{ID: f.admin.ID, Status: credential.StatusBlocked} },
			wantErr: ErrTargetProtected,
		},
		{
			name:    "self block",
			actor:   func(f *fixture) Actor { return f.manager },
			input:   func(f *fixture) UpdateInput { return UpdateInput{ID: f.manager.ID, Status: credential.StatusBlocked} },
			wantErr: ErrSelfAction,
		},
		{
			name:    "unknown status",
			actor:   func(f *fixture) Actor { return f.admin },
			input:   func(f *fixture) UpdateInput { return UpdateInput{ID: f.user.ID, Status: "deleted"} },
			wantErr: ErrInvalidStatus,
		},
		{
			name:    "missing user",
			actor:   func(f *fixture) Actor { return f.admin },
			input:   func(f *fixture) UpdateInput { return UpdateInput{ID: 999} },
			wantErr: credential.ErrUserNotFound,
		},
		{
			name:  "password over bcrypt limit",
			actor: func(f *fixture) Actor { return f.admin },
			input: func(f *fixture) UpdateInput {
				return UpdateInput{ID: f.user.ID, Password: strings.Repeat("x", 73)}
			},
			wantErr: credential.ErrWeakPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Update(ctx, tt.actor(f), tt.input(f))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.revoker.calls)
		})
	}
}

func TestDeleteAndSetRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.manager, f.user.ID), acl.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.admin, f.admin.ID), ErrSelfAction)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.admin, 999), credential.ErrUserNotFound)

	_, err := f.svc.SetRole(ctx, f.admin, f.admin.ID, "user")
	assert.ErrorIs(t, err, ErrSelfAction)
	_, err = f.svc.SetRole(ctx, f.manager, f.user.ID, "manager")
	assert.ErrorIs(t, err, acl.ErrForbidden)
	_, err = f.svc.SetRole(ctx, f.admin, f.user.ID, "owner")
	assert.ErrorIs(t, err, ErrUnknownRole)

	role, err := f.svc.SetRole(ctx, f.admin, f.user.ID, " Manager ")
	require.NoError(t, err)
	assert.Equal(t, acl.RoleManager, role)
	resolved, err := acl.NewResolver(f.repo).Resolve(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, acl.RoleManager, resolved)

	require.NoError(t, f.svc.Delete(ctx, f.admin, f.user.ID))
	assert.Equal(t, []int64{f.user.ID}, f.revoker.calls)
	_, err = f.repo.GetByID(ctx, f.user.ID)
	assert.ErrorIs(t, err, credential.ErrUserNotFound)
}

func TestActorIdentity(t *testing.T) {
	assert.False(t, Actor{}.Authenticated())
	assert.True(t, Actor{ID: 1, UserRole: acl.RoleUser}.Authenticated())
	assert.ErrorIs(t, acl.Require(acl.All, Actor{}), acl.ErrUnauthorized)
}

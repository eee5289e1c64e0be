package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/apperr"
	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/database"
)

// Alias is the capability the users module exports its Service under.
const Alias = "module:users"

const minPhoneDigits = 10

var (
	ErrSelfAction      = apperr.New(apperr.Forbidden, "action not allowed on own account")
	ErrTargetProtected = apperr.New(apperr.Forbidden, "target outranks the caller")
	ErrNameRequired    = apperr.New(apperr.InvalidInput, "name is required")
	ErrUnknownRole     = apperr.New(apperr.InvalidInput, "unknown role")
	ErrInvalidStatus   = apperr.New(apperr.InvalidInput, "unknown status")
)

// SessionRevoker drops every remember session of a user.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID int64) error
}

// Actor is the caller a Service operation runs for.
type Actor struct {
	ID       int64
	UserRole acl.Role
}

func (a Actor) Authenticated() bool { return a.ID != 0 }

func (a Actor) Role() acl.Role { return a.UserRole }

type CreateInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     string
}

// UpdateInput fields left empty keep their stored value.
type UpdateInput struct {
	ID       int64
	Name     string
	Email    string
	Phone    string
	Password string
	Status   string
}

// Changes reports what an Update did beyond profile fields.
type Changes struct {
	PasswordChanged bool
	StatusChanged   bool
	Revoked         bool
}

type Service struct {
	log         *zap.Logger
	users       credential.Repository
	hasher      credential.Hasher
	roles       *acl.Resolver
	sessions    SessionRevoker
	tx          database.Transactor
	minPassword int
	random      io.Reader
}

func NewService(
	cfg *config.AppConfig,
	log *zap.Logger,
	users credential.Repository,
	hasher credential.Hasher,
	roles *acl.Resolver,
	sessions SessionRevoker,
	tx database.Transactor,
) *Service {
	return &Service{
		log:         log,
		users:       users,
		hasher:      hasher,
		roles:       roles,
		sessions:    sessions,
		tx:          tx,
		minPassword: cfg.Security.PasswordMinLength,
		random:      rand.Reader,
	}
}

// Create adds a user. Managers can only create plain users. An empty
// password stores a hash of random bytes, so the account is usable only
// after a reset.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*credential.User, error) {
	if err := acl.Require([]acl.Role{acl.RoleAdmin, acl.RoleManager}, actor); err != nil {
		return nil, err
	}

	role := acl.RoleUser
	if actor.UserRole == acl.RoleAdmin && strings.TrimSpace(in.Role) != "" {
		r, ok := acl.ParseRole(in.Role)
		if !ok {
			return nil, ErrUnknownRole
		}
		role = r
	}

	user := &credential.User{Status: credential.StatusActive}
	if err := s.applyProfile(user, in.Name, in.Email, in.Phone); err != nil {
		return nil, err
	}
	if user.Name == "" {
		return nil, ErrNameRequired
	}
	if user.Email == "" {
		return nil, credential.ErrInvalidEmail
	}
	if user.Phone == "" {
		return nil, credential.ErrInvalidPhone
	}

	password := in.Password
	if password == "" {
		throwaway, err := s.throwaway()
		if err != nil {
			return nil, err
		}
		password = throwaway
	} else if err := credential.ValidatePassword(password, s.minPassword); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user.PassHash = hash

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		return s.users.SetRole(ctx, user.ID, role.String())
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user created", zap.Int64("user_id", user.ID), zap.Int64("by", actor.ID), zap.String("role", role.String()))
	return user, nil
}

// Update changes profile fields, the password and the status of a user.
// A new password or a block revokes the user's remember sessions.
func (s *Service) Update(ctx context.Context, actor Actor, in UpdateInput) (*Changes, error) {
	if err := acl.Require([]acl.Role{acl.RoleAdmin, acl.RoleManager}, actor); err != nil {
		return nil, err
	}

	user, err := s.target(ctx, actor, in.ID)
	if err != nil {
		return nil, err
	}
	if err := s.applyProfile(user, in.Name, in.Email, in.Phone); err != nil {
		return nil, err
	}

	changes := &Changes{}
	var hash string
	if in.Password != "" {
		if err := credential.ValidatePassword(in.Password, s.minPassword); err != nil {
			return nil, err
		}
		if hash, err = s.hasher.Hash(in.Password); err != nil {
			return nil, err
		}
		changes.PasswordChanged = true
	}

	status := strings.TrimSpace(in.Status)
	if status != "" && status != user.Status {
		if status != credential.StatusActive && status != credential.StatusBlocked {
			return nil, ErrInvalidStatus
		}
		if user.ID == actor.ID {
			return nil, ErrSelfAction
		}
		changes.StatusChanged = true
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		if changes.PasswordChanged {
			if err := s.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
				return err
			}
		}
		if changes.StatusChanged {
			if err := s.users.SetStatus(ctx, user.ID, status); err != nil {
				return err
			}
		}
		if changes.PasswordChanged || (changes.StatusChanged && status == credential.StatusBlocked) {
			changes.Revoked = true
			return s.sessions.RevokeAll(ctx, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user updated",
		zap.Int64("user_id", user.ID),
		zap.Int64("by", actor.ID),
		zap.Bool("password_changed", changes.PasswordChanged),
		zap.Bool("status_changed", changes.StatusChanged))
	return changes, nil
}

// Delete removes a user and its remember sessions. Admin only.
func (s *Service) Delete(ctx context.Context, actor Actor, id int64) error {
	if err := acl.Require([]acl.Role{acl.RoleAdmin}, actor); err != nil {
		return err
	}
	if id == actor.ID {
		return ErrSelfAction
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.RevokeAll(ctx, id); err != nil {
			return err
		}
		return s.users.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("user deleted", zap.Int64("user_id", id), zap.Int64("by", actor.ID))
	return nil
}

// SetRole replaces the user's role. Admin only.
func (s *Service) SetRole(ctx context.Context, actor Actor, id int64, code string) (acl.Role, error) {
	if err := acl.Require([]acl.Role{acl.RoleAdmin}, actor); err != nil {
		return "", err
	}
	if id == actor.ID {
		return "", ErrSelfAction
	}
	role, ok := acl.ParseRole(code)
	if !ok {
		return "", ErrUnknownRole
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return "", err
	}
	if err := s.users.SetRole(ctx, id, role.String()); err != nil {
		return "", err
	}
	s.log.Info("user role changed", zap.Int64("user_id", id), zap.Int64("by", actor.ID), zap.String("role", role.String()))
	return role, nil
}

// target loads the user actor wants to modify. Managers may only modify
// plain users and themselves.
func (s *Service) target(ctx context.Context, actor Actor, id int64) (*credential.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.UserRole == acl.RoleAdmin || user.ID == actor.ID {
		return user, nil
	}
	role, err := s.roles.Resolve(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target role: %w", err)
	}
	if role != acl.RoleUser {
		return nil, ErrTargetProtected
	}
	return user, nil
}

func (s *Service) applyProfile(user *credential.User, name, email, phone string) error {
	if name = strings.TrimSpace(name); name != "" {
		user.Name = name
	}
	if email = strings.TrimSpace(email); email != "" {
		email = credential.NormalizeEmail(email)
		if !credential.ValidEmail(email) {
			return credential.ErrInvalidEmail
		}
		user.Email = email
	}
	if phone = strings.TrimSpace(phone); phone != "" {
		phone = credential.NormalizePhone(phone)
		if len(phone) < minPhoneDigits {
			return credential.ErrInvalidPhone
		}
		user.Phone = phone
	}
	return nil
}

func (s *Service) throwaway() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

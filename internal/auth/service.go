// Package auth verifies credentials and turns cookies into a request's
// SecurityContext.
package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/apperr"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/remember"
	"github.com/elskow/backoffice/internal/session"
	"github.com/elskow/backoffice/internal/throttle"
)

// Both failures surface as the same public message.
var (
	ErrInvalidCredentials = apperr.New(apperr.Authentication, "invalid credentials")
	ErrLocked             = apperr.New(apperr.Authentication, "login locked")
)

type Service struct {
	log      *zap.Logger
	users    credential.Repository
	hasher   credential.Hasher
	throttle *throttle.Throttle
	vault    *remember.Vault
	sessions *session.Manager
	roles    *acl.Resolver
}

func NewService(
	log *zap.Logger,
	users credential.Repository,
	hasher credential.Hasher,
	throttle *throttle.Throttle,
	vault *remember.Vault,
	sessions *session.Manager,
	roles *acl.Resolver,
) *Service {
	return &Service{
		log:      log,
		users:    users,
		hasher:   hasher,
		throttle: throttle,
		vault:    vault,
		sessions: sessions,
		roles:    roles,
	}
}

// AttemptLogin checks identifier and secret for a caller at origin. A
// locked key fails before the user is looked up. An unknown identifier
// costs the same bcrypt work and counts against the same key as a wrong
// password.
func (s *Service) AttemptLogin(ctx context.Context, identifier, secret, origin string) (int64, error) {
	id := credential.NormalizeIdentifier(identifier)
	if id == "" {
		s.hasher.CompareDummy(secret)
		return 0, ErrInvalidCredentials
	}
	key := throttle.Key(id, origin)

	locked, err := s.throttle.IsLocked(ctx, key)
	if err != nil {
		return 0, err
	}
	if locked {
		s.hasher.CompareDummy(secret)
		return 0, ErrLocked
	}

	user, err := s.lookup(ctx, id)
	if err != nil && !errors.Is(err, credential.ErrUserNotFound) {
		return 0, err
	}

	granted := false
	if user != nil {
		granted = s.hasher.Compare(user.PassHash, secret) && user.Active()
	} else {
		s.hasher.CompareDummy(secret)
	}

	if !granted {
		if _, err := s.throttle.RecordFailure(ctx, key); err != nil {
			s.log.Error("failed to record login failure", zap.Error(err))
		}
		return 0, ErrInvalidCredentials
	}

	if err := s.throttle.Clear(ctx, key); err != nil {
		s.log.Error("failed to clear login attempts", zap.Error(err))
	}
	return user.ID, nil
}

func (s *Service) lookup(ctx context.Context, id string) (*credential.User, error) {
	if credential.IsEmail(id) {
		return s.users.GetByEmail(ctx, id)
	}
	return s.users.GetByPhone(ctx, id)
}

// LoginResult carries what the transport must send back after a login.
type LoginResult struct {
	UserID   int64
	Remember *remember.Issued
}

// Login authenticates, binds the user to a regenerated interactive
// session and issues a remember token.
func (s *Service) Login(ctx context.Context, sess *session.Session, identifier, secret string, client remember.Client) (*LoginResult, error) {
	uid, err := s.AttemptLogin(ctx, identifier, secret, client.IP)
	if err != nil {
		return nil, err
	}

	sess.Data.UserID = uid
	sess.Data.CSRF = ""
	if err := s.sessions.Regenerate(ctx, sess); err != nil {
		return nil, err
	}

	issued, err := s.vault.Issue(ctx, uid, client)
	if err != nil {
		return nil, err
	}

	s.log.Info("user logged in", zap.Int64("user_id", uid), zap.String("ip", client.IP))
	return &LoginResult{UserID: uid, Remember: issued}, nil
}

// Logout revokes the presented remember token and drops the interactive
// session, whether or not either matched anything.
func (s *Service) Logout(ctx context.Context, sess *session.Session, rememberValue string) error {
	var errs []error
	if err := s.vault.Revoke(ctx, rememberValue); err != nil {
		errs = append(errs, err)
	}
	if err := s.sessions.Destroy(ctx, sess); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Identify builds the SecurityContext for a request. When the interactive
// session is anonymous it tries the remember cookie, returning the rotated
// token the caller must send back.
func (s *Service) Identify(ctx context.Context, sess *session.Session, rememberValue string, client remember.Client) (*SecurityContext, *remember.Issued, error) {
	sc := &SecurityContext{Session: sess, Client: client}

	var rotated *remember.Issued
	if !sess.Authenticated() && rememberValue != "" {
		issued, ok := s.vault.Restore(ctx, rememberValue, client)
		if ok {
			rotated = issued
			sess.Data.UserID = issued.UserID
			sess.Data.CSRF = ""
			if err := s.sessions.Regenerate(ctx, sess); err != nil {
				return nil, nil, err
			}
			s.log.Info("session restored from remember token", zap.Int64("user_id", issued.UserID))
		}
	}

	if !sess.Authenticated() {
		return sc, rotated, nil
	}

	user, err := s.users.GetByID(ctx, sess.Data.UserID)
	if err != nil && !errors.Is(err, credential.ErrUserNotFound) {
		return nil, nil, err
	}
	if !user.Active() {
		s.log.Info("dropping session of inactive user", zap.Int64("user_id", sess.Data.UserID))
		if err := s.sessions.Destroy(ctx, sess); err != nil {
			return nil, nil, err
		}
		return sc, nil, nil
	}

	role, err := s.roles.Resolve(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve role: %w", err)
	}

	sc.UserID = user.ID
	sc.User = user
	sc.UserRole = role
	return sc, rotated, nil
}

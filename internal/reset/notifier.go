package reset

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/config"
)

// Notifier delivers a reset link to the owner of the token.
type Notifier interface {
	NotifyReset(ctx context.Context, req *Request) error
}

// LogNotifier stands in for a mailer. Outside development it never writes
// the link, since the log would then hold a live credential.
type LogNotifier struct {
	log      *zap.Logger
	linkBase string
	dev      bool
}

func NewLogNotifier(cfg *config.AppConfig, log *zap.Logger) *LogNotifier {
	return &LogNotifier{
		log:      log,
		linkBase: cfg.Security.ResetLinkBase,
		dev:      cfg.Environment == "development",
	}
}

func (n *LogNotifier) NotifyReset(_ context.Context, req *Request) error {
	if !n.dev {
		n.log.Warn("no mailer configured, reset link not delivered",
			zap.Int64("user_id", req.UserID))
		return nil
	}

	link, err := Link(n.linkBase, req.Token)
	if err != nil {
		return err
	}
	n.log.Info("password reset link",
		zap.Int64("user_id", req.UserID),
		zap.String("email", req.Email),
		zap.String("link", link),
		zap.Time("expires_at", req.ExpiresAt))
	return nil
}

// Link appends the token to base as the "token" query parameter.
func Link(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid reset link base: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

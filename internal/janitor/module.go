package janitor

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/remember"
	"github.com/elskow/backoffice/internal/reset"
	"github.com/elskow/backoffice/internal/throttle"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(newJanitor),
		fx.Invoke(registerHooks),
	)
}

func newJanitor(
	cfg *config.AppConfig,
	log *zap.Logger,
	sessions remember.Repository,
	resets reset.Repository,
	attempts throttle.Repository,
) *Janitor {
	return New(&cfg.Janitor, log.Named("janitor"), []Target{
		{Name: "remember_sessions", Purger: sessions},
		{Name: "password_resets", Purger: resets},
		{Name: "login_attempts", Purger: attempts},
	})
}

func registerHooks(lifecycle fx.Lifecycle, j *Janitor) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			j.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			j.Stop()
			return nil
		},
	})
}

package capability

import (
	"context"
	"errors"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/backoffice/internal/config"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			NewRegistry,
			fx.Annotate(
				func(db *gorm.DB) StateStore {
					return NewStateStore(db)
				},
			),
			newLoader,
		),
		fx.Invoke(registerHooks),
	)
}

func newLoader(cfg *config.AppConfig, registry *Registry, states StateStore, log *zap.Logger) (*Loader, error) {
	fsys := os.DirFS(cfg.Modules.Dir)
	manifests, err := Scan(fsys)
	if err != nil {
		if cfg.Modules.Strict || len(manifests) == 0 {
			return nil, err
		}
		log.Warn("some module manifests were skipped", zap.Error(err))
	}
	log.Info("module manifests loaded",
		zap.String("dir", cfg.Modules.Dir),
		zap.Int("count", len(manifests)))
	return NewLoader(registry, fsys, manifests, states, log.Named("capability")), nil
}

// registerHooks seeds the modules table and checks every enabled module's
// requires once the schema is in place.
func registerHooks(lifecycle fx.Lifecycle, cfg *config.AppConfig, loader *Loader, states StateStore, log *zap.Logger) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := states.Seed(ctx, loader.Manifests()); err != nil {
				return err
			}
			errs := loader.Validate(ctx)
			for _, err := range errs {
				log.Error("module configuration invalid", zap.Error(err))
			}
			if cfg.Modules.Strict {
				return errors.Join(errs...)
			}
			return nil
		},
	})
}

package throttle

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/backoffice/internal/config"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig, log *zap.Logger, repo Repository) *Throttle {
					return New(&cfg.Security, log, repo)
				},
			),
		),
	)
}

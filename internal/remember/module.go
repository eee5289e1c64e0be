package remember

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/database"
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
				func(cfg *config.AppConfig, log *zap.Logger, repo Repository, users credential.Repository, tx database.Transactor) *Vault {
					return NewVault(&cfg.Security, log, repo, users, tx)
				},
			),
		),
	)
}

package reset

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/database"
	"github.com/elskow/backoffice/internal/remember"
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
				func(
					cfg *config.AppConfig,
					log *zap.Logger,
					repo Repository,
					users credential.Repository,
					hasher credential.Hasher,
					vault *remember.Vault,
					tx database.Transactor,
				) *Ledger {
					return NewLedger(&cfg.Security, log, repo, users, hasher, vault, tx)
				},
			),
			fx.Annotate(
				NewLogNotifier,
				fx.As(new(Notifier)),
			),
		),
	)
}

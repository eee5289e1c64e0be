package audit

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/backoffice/internal/config"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			newDispatcher,
			func(d *Dispatcher) Recorder { return d },
		),
	)
}

func newDispatcher(lc fx.Lifecycle, cfg *config.AppConfig, db *gorm.DB, log *zap.Logger) *Dispatcher {
	d := NewDispatcher(&cfg.Audit, NewGormSink(db), log.Named("audit"))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			d.Close()
			if n := d.Dropped(); n > 0 {
				log.Warn("audit events dropped", zap.Uint64("count", n))
			}
			return nil
		},
	})
	return d
}

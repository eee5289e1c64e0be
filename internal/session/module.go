package session

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/config"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			newRedisClient,
			fx.Annotate(
				func(rdb *redis.Client, cfg *config.AppConfig) Store {
					return NewRedisStore(rdb, cfg.Redis.KeyPrefix, cfg.Security.SessionIdleTimeout)
				},
			),
			fx.Annotate(
				func(store Store, cfg *config.AppConfig, log *zap.Logger) *Manager {
					codec := NewCookieCodec(cfg.Security.AppSecret)
					return NewManager(store, codec, log, cfg.Security.SessionCookieName)
				},
			),
		),
	)
}

func newRedisClient(lc fx.Lifecycle, cfg *config.AppConfig, log *zap.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return err
			}
			log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})
	return rdb
}

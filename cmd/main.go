package main

import (
	"flag"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/elskow/backoffice/internal/app"
	"github.com/elskow/backoffice/internal/server"
)

// shutdownTimeout bounds draining of HTTP requests and queued audit events.
const shutdownTimeout = 30 * time.Second

func main() {
	configDir := flag.String("config", "", "directory holding config.toml (default ./config/server)")
	flag.Parse()

	if *configDir != "" {
		os.Setenv("BACKOFFICE_CONFIG_DIR", *configDir)
	}
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = server.EnvDevelopment
		os.Setenv("APP_ENV", env)
	}

	logger, err := server.NewLogger(env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	backoffice := fx.New(
		app.Module(),
		fx.StopTimeout(shutdownTimeout),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	backoffice.Run()
}

package app

import (
	"context"
	"errors"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/audit"
	"github.com/elskow/backoffice/internal/auth"
	"github.com/elskow/backoffice/internal/capability"
	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/csrf"
	"github.com/elskow/backoffice/internal/database"
	"github.com/elskow/backoffice/internal/janitor"
	"github.com/elskow/backoffice/internal/migration"
	"github.com/elskow/backoffice/internal/modules/authmod"
	"github.com/elskow/backoffice/internal/modules/catalog"
	"github.com/elskow/backoffice/internal/modules/dashboard"
	"github.com/elskow/backoffice/internal/modules/users"
	"github.com/elskow/backoffice/internal/remember"
	"github.com/elskow/backoffice/internal/reset"
	"github.com/elskow/backoffice/internal/server"
	"github.com/elskow/backoffice/internal/session"
	"github.com/elskow/backoffice/internal/shell"
	"github.com/elskow/backoffice/internal/throttle"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		// Logger
		fx.Provide(newLogger),

		// Configuration
		fx.Provide(server.LoadConfig),

		// Storage; migrations run before anything reads the schema
		database.Module(),
		migration.Module(),
		session.NewModule(),

		// Trust engine
		credential.NewModule(),
		throttle.NewModule(),
		remember.NewModule(),
		reset.NewModule(),
		audit.NewModule(),
		auth.NewModule(),
		fx.Provide(csrf.NewGuard, newUserService),
		janitor.NewModule(),

		// Capabilities
		capability.NewModule(),
		fx.Invoke(registerCapabilities),

		// Back-office modules
		fx.Provide(
			shell.AsModule(authmod.New),
			shell.AsModule(users.NewModule),
			shell.AsModule(catalog.New),
			shell.AsModule(dashboard.New),
		),
		shell.NewModule(),

		// Server
		fx.Provide(server.NewServer),

		// Start the server
		fx.Invoke(registerHooks),
	)
}

func newLogger() (*zap.Logger, error) {
	env := os.Getenv("APP_ENV")
	return server.NewLogger(env)
}

func newUserService(
	cfg *config.AppConfig,
	log *zap.Logger,
	repo credential.Repository,
	hasher credential.Hasher,
	roles *acl.Resolver,
	vault *remember.Vault,
	tx database.Transactor,
) *users.Service {
	return users.NewService(cfg, log.Named("users"), repo, hasher, roles, vault, tx)
}

type capabilityParams struct {
	fx.In

	Registry *capability.Registry
	Tx       database.Transactor
	Hasher   credential.Hasher
	CSRF     *csrf.Guard
	Auth     *auth.Service
	Roles    *acl.Resolver
	Audit    audit.Recorder
	Vault    *remember.Vault
	Ledger   *reset.Ledger
	Notifier reset.Notifier
	Loader   *capability.Loader
	Users    *users.Service
}

// registerCapabilities binds every alias a manifest may require to the
// service behind it.
func registerCapabilities(p capabilityParams) error {
	r := p.Registry
	return errors.Join(
		r.RegisterCore(capability.CoreDB, capability.Value(p.Tx)),
		r.RegisterCore(capability.CoreSecurity, capability.Value(p.Hasher)),
		r.RegisterCore(capability.CoreCSRF, capability.Value(p.CSRF)),
		r.RegisterCore(capability.CoreAuth, capability.Value(p.Auth)),
		r.RegisterCore(capability.CoreACL, capability.Value(p.Roles)),
		r.RegisterCore(capability.CoreAudit, capability.Value(p.Audit)),
		r.RegisterCore(capability.CoreRemember, capability.Value(p.Vault)),
		r.RegisterCore(capability.CoreReset, capability.Value(p.Ledger)),
		r.RegisterCore(capability.CoreNotify, capability.Value(p.Notifier)),
		r.RegisterCore(capability.CoreModules, capability.Value(capability.Modules(p.Loader))),
		r.RegisterModule(users.Alias, capability.Value(p.Users)),
	)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	srv *server.Server,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			return srv.Stop(ctx)
		},
	})
}

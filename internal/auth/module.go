package auth

import (
	"go.uber.org/fx"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/credential"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(repo credential.Repository) *acl.Resolver {
					return acl.NewResolver(repo)
				},
			),
			NewService,
		),
	)
}

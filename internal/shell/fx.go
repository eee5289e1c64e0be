package shell

import (
	"go.uber.org/fx"
)

// NewModule returns the shell module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(New),
	)
}

// AsModule annotates a constructor so its result joins the modules group.
func AsModule(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(Module)),
		fx.ResultTags(`group:"modules"`),
	)
}

package evaluator

import (
	"forwardtest/internal/modules/evaluator/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("evaluator",
		fx.Provide(
			service.NewFactory,
		),
	)
}

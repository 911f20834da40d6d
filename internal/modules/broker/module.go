package broker

import (
	"forwardtest/internal/modules/broker/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("broker",
		fx.Provide(
			service.NewClient,
		),
	)
}

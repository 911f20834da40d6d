package pricefeed

import (
	"context"

	"forwardtest/internal/modules/pricefeed/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("pricefeed",
		fx.Provide(
			service.NewQuotes,
			service.NewStream,
		),
		fx.Invoke(
			func(lc fx.Lifecycle, s *service.Stream) {
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						go s.Run(ctx)
						return nil
					},
					OnStop: func(context.Context) error {
						cancel()
						return nil
					},
				})
			},
		),
	)
}

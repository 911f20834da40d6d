package diagnostics

import (
	brokersvc "forwardtest/internal/modules/broker/service"
	"forwardtest/internal/modules/config"
	"forwardtest/internal/modules/diagnostics/service"
	sessionssvc "forwardtest/internal/modules/sessions/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("diagnostics",
		fx.Provide(
			func(cfg *config.Config, store sessionssvc.Store, client *brokersvc.Client) *service.Service {
				return service.New(cfg, store, client)
			},
		),
	)
}

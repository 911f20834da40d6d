package executor

import (
	"forwardtest/internal/modules/broker/service"
	"forwardtest/internal/modules/config"
	executorsvc "forwardtest/internal/modules/executor/service"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			func(cfg *config.Config, client *service.Client, store sessionssvc.Store, n notify.Notifier) *executorsvc.Executor {
				return executorsvc.New(cfg, client, store, n)
			},
		),
	)
}

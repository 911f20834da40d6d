package orchestrator

import (
	"context"

	brokersvc "forwardtest/internal/modules/broker/service"
	"forwardtest/internal/modules/config"
	evalsvc "forwardtest/internal/modules/evaluator/service"
	executorsvc "forwardtest/internal/modules/executor/service"
	healthsvc "forwardtest/internal/modules/health/service"
	"forwardtest/internal/modules/orchestrator/service"
	pricefeedsvc "forwardtest/internal/modules/pricefeed/service"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("orchestrator",
		fx.Provide(
			func(cfg *config.Config, client *brokersvc.Client, factory *evalsvc.Factory, exec *executorsvc.Executor, store sessionssvc.Store, quotes *pricefeedsvc.Quotes, health *healthsvc.State) *service.Loop {
				return service.NewLoop(cfg, client, factory, exec, store, quotes, health)
			},
			func(loop *service.Loop, store sessionssvc.Store, n notify.Notifier) *service.Manager {
				return service.NewManager(loop, store, n)
			},
			func(cfg *config.Config, loop *service.Loop, store sessionssvc.Store) *service.Sweeper {
				return service.NewSweeper(loop, store, cfg.SweepInterval)
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, m *service.Manager) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return m.Resume(ctx)
					},
					OnStop: func(ctx context.Context) error {
						m.Stop()
						return nil
					},
				})
			},
		),
	)
}

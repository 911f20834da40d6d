package main

import (
	"context"
	"log"

	"forwardtest/internal/modules/broker"
	brokersvc "forwardtest/internal/modules/broker/service"
	"forwardtest/internal/modules/config"
	"forwardtest/internal/modules/evaluator"
	evalsvc "forwardtest/internal/modules/evaluator/service"
	"forwardtest/internal/modules/executor"
	executorsvc "forwardtest/internal/modules/executor/service"
	"forwardtest/internal/modules/health"
	healthsvc "forwardtest/internal/modules/health/service"
	orchsvc "forwardtest/internal/modules/orchestrator/service"
	"forwardtest/internal/modules/postgres"
	"forwardtest/internal/modules/pricefeed"
	pricefeedsvc "forwardtest/internal/modules/pricefeed/service"
	"forwardtest/internal/modules/sessions"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/internal/notify"
	"forwardtest/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

const serviceName = "worker"

// The worker is the background execution context: no API, no per-session
// goroutines, just the periodic sweep. It runs as a separate process so a
// dead orchestrator does not silently stop forward testing.
func main() {
	_ = godotenv.Load()

	flush, err := logger.Init(serviceName)
	if err != nil {
		log.Fatal(err)
	}
	defer flush()

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					if tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID); err == nil {
						return tg
					}
				}
				return notify.NewStdout()
			},
			func(cfg *config.Config, client *brokersvc.Client, factory *evalsvc.Factory, exec *executorsvc.Executor, store sessionssvc.Store, quotes *pricefeedsvc.Quotes, state *healthsvc.State) *orchsvc.Loop {
				return orchsvc.NewLoop(cfg, client, factory, exec, store, quotes, state)
			},
			func(cfg *config.Config, loop *orchsvc.Loop, store sessionssvc.Store) *orchsvc.Sweeper {
				return orchsvc.NewSweeper(loop, store, cfg.SweepInterval)
			},
		),
		config.Module(),
		postgres.Module(),
		sessions.Module(),
		broker.Module(),
		evaluator.Module(),
		executor.Module(),
		health.Module(),
		pricefeed.Module(),
		fx.Invoke(
			func(lc fx.Lifecycle, s *orchsvc.Sweeper) {
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						go s.Run(ctx)
						logger.Info("sweeper started")
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
	app.Run()
}

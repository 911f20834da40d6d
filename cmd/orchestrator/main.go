package main

import (
	"context"
	"log"

	"forwardtest/internal/modules/api"
	"forwardtest/internal/modules/broker"
	"forwardtest/internal/modules/config"
	"forwardtest/internal/modules/diagnostics"
	"forwardtest/internal/modules/evaluator"
	"forwardtest/internal/modules/executor"
	"forwardtest/internal/modules/health"
	"forwardtest/internal/modules/orchestrator"
	"forwardtest/internal/modules/postgres"
	"forwardtest/internal/modules/pricefeed"
	"forwardtest/internal/modules/sessions"
	"forwardtest/internal/notify"
	"forwardtest/pkg/logger"
	"forwardtest/pkg/tracing"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

const serviceName = "orchestrator"

func main() {
	_ = godotenv.Load()

	flush, err := logger.Init(serviceName)
	if err != nil {
		log.Fatal(err)
	}
	defer flush()
	tracing.SetServiceName(serviceName)

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			// Notifier: stdout unless Telegram is configured
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					if tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID); err == nil {
						return tg
					}
				}
				return notify.NewStdout()
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
		orchestrator.Module(),
		diagnostics.Module(),
		api.Module(),
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config) {
				var closeTracer func()
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						_, closer, err := tracing.InitTracer(tracing.Config{
							Host: cfg.Tracing.Host,
							Port: cfg.Tracing.Port,
						})
						if err != nil {
							return err
						}
						closeTracer = closer
						return nil
					},
					OnStop: func(context.Context) error {
						if closeTracer != nil {
							closeTracer()
						}
						return nil
					},
				})
			},
		),
	)
	app.Run()
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"forwardtest/internal/modules/api/service"
	brokersvc "forwardtest/internal/modules/broker/service"
	"forwardtest/internal/modules/config"
	diagsvc "forwardtest/internal/modules/diagnostics/service"
	orchsvc "forwardtest/internal/modules/orchestrator/service"
	sessionssvc "forwardtest/internal/modules/sessions/service"
	"forwardtest/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(
			func(cfg *config.Config, manager *orchsvc.Manager, store sessionssvc.Store, diag *diagsvc.Service, client *brokersvc.Client) *service.Handler {
				return service.NewHandler(cfg, manager, store, diag, client)
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config, h *service.Handler) {
				gin.SetMode(gin.ReleaseMode)
				r := gin.New()
				r.Use(gin.Recovery())
				h.Register(r)

				srv := &http.Server{
					Addr:              fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.PublicPort),
					Handler:           r,
					ReadHeaderTimeout: 5 * time.Second,
				}

				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						go func() {
							logger.Info("api listening on %s", srv.Addr)
							if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
								logger.Fatal("api server: %v", err)
							}
						}()
						return nil
					},
					OnStop: func(ctx context.Context) error {
						return srv.Shutdown(ctx)
					},
				})
			},
		),
	)
}

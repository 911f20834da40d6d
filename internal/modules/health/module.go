package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"forwardtest/internal/modules/config"
	"forwardtest/internal/modules/health/service"
	"forwardtest/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(service.NewState),
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config, state *service.State) {
				gin.SetMode(gin.ReleaseMode)
				r := gin.New()
				r.GET("/healthz", func(c *gin.Context) {
					c.JSON(http.StatusOK, state.Snapshot())
				})
				r.GET("/readyz", func(c *gin.Context) {
					snap := state.Snapshot()
					if !snap.Ready {
						c.JSON(http.StatusServiceUnavailable, snap)
						return
					}
					c.JSON(http.StatusOK, snap)
				})

				srv := &http.Server{
					Addr:              fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.AdminPort),
					Handler:           r,
					ReadHeaderTimeout: 5 * time.Second,
				}

				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						go func() {
							logger.Info("admin listening on %s", srv.Addr)
							if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
								logger.Fatal("admin server: %v", err)
							}
						}()
						state.SetReady(true)
						return nil
					},
					OnStop: func(ctx context.Context) error {
						state.SetReady(false)
						return srv.Shutdown(ctx)
					},
				})
			},
		),
	)
}

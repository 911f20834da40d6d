package sessions

import (
	"forwardtest/internal/modules/sessions/service"
	"forwardtest/internal/modules/sessions/service/pg"
	"forwardtest/pkg/db"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("sessions",
		fx.Provide(
			func(tm *db.PgTxManager) service.Store {
				return pg.New(tm)
			},
		),
	)
}

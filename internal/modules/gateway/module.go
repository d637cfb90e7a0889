package gateway

import (
	"go.uber.org/fx"

	"bracket_bot/internal/broker"
	"bracket_bot/internal/modules/gateway/service"
)

// Module: брокер через WebSocket-мост. Подключается менеджер соединения.
func Module() fx.Option {
	return fx.Module("gateway",
		fx.Provide(
			fx.Annotate(service.NewClient, fx.As(new(broker.Broker))),
		),
	)
}

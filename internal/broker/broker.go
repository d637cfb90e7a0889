package broker

import (
	"context"

	"bracket_bot/internal/models"
)

// Broker: то, что нам даёт шлюз к брокеру. Протокол за ним нас не касается.
type Broker interface {
	Connect(ctx context.Context, host string, port int, clientID int) error
	IsConnected() bool
	Disconnect() error

	ResolveInstrument(ctx context.Context, inst models.Instrument) (models.Contract, error)
	SubmitOrder(ctx context.Context, contract models.Contract, order models.OrderRequest) (models.OrderHandle, error)
	CancelOrder(ctx context.Context, handle models.OrderHandle) error
	OrderState(ctx context.Context, handle models.OrderHandle) (models.OrderState, error)

	PollExecutions(ctx context.Context) ([]models.Fill, error)
	QueryOpenOrders(ctx context.Context) ([]models.OpenOrder, error)
	QueryPositions(ctx context.Context) ([]models.PositionRecord, error)
	FetchBars(ctx context.Context, contract models.Contract, window, barSize string) ([]models.Bar, error)

	OptionChain(ctx context.Context, underlying models.Instrument) (models.OptionChain, error)
	QuoteOptions(ctx context.Context, insts []models.Instrument) ([]models.OptionQuote, error)
}

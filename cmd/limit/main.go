// limit: разовый лимитный ордер на опцион с автоотменой и записью в журнал ордеров.
// С --csp контракт и цену выбирает бот: продажа пута вне денег по mid.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"bracket_bot/internal/helper"
	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/audit"
	"bracket_bot/internal/modules/config"
	"bracket_bot/internal/modules/connection"
	connsvc "bracket_bot/internal/modules/connection/service"
	"bracket_bot/internal/modules/gateway"
	healthsvc "bracket_bot/internal/modules/health/service"
	"bracket_bot/internal/modules/notify"
	"bracket_bot/internal/modules/postgres"
	"bracket_bot/internal/runner/engine"
	"bracket_bot/pkg/logger"
)

type options struct {
	symbol string
	expiry string
	strike string
	right  string
	action string
	qty    float64
	price  string
	wait   time.Duration

	csp        bool
	minStrikes int
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("limit", pflag.ContinueOnError)
	fs.StringVar(&o.symbol, "symbol", "", "базовый тикер, например SPY")
	fs.StringVar(&o.expiry, "expiry", "", "экспирация YYYYMMDD")
	fs.StringVar(&o.strike, "strike", "", "страйк")
	fs.StringVar(&o.right, "right", "C", "C или P")
	fs.StringVar(&o.action, "action", "BUY", "BUY или SELL")
	fs.Float64Var(&o.qty, "qty", 1, "контрактов")
	fs.StringVar(&o.price, "price", "", "лимитная цена (премия)")
	fs.DurationVar(&o.wait, "wait", 30*time.Second, "сколько ждать исполнения")
	fs.BoolVar(&o.csp, "csp", false, "выбрать cash-secured put по ближайшей пятничной экспирации")
	fs.IntVar(&o.minStrikes, "min-strikes", 10, "сколько страйков вокруг ATM смотреть (--csp)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.csp {
		if o.symbol == "" {
			return o, fmt.Errorf("--symbol is required")
		}
		return o, nil
	}
	if o.symbol == "" || o.expiry == "" || o.strike == "" || o.price == "" {
		return o, fmt.Errorf("--symbol, --expiry, --strike and --price are required")
	}
	return o, nil
}

func (o options) request() (engine.LimitRequest, error) {
	exp, err := helper.ParseExpiry(o.expiry)
	if err != nil {
		return engine.LimitRequest{}, err
	}
	strike, err := decimal.NewFromString(o.strike)
	if err != nil {
		return engine.LimitRequest{}, fmt.Errorf("strike: %w", err)
	}
	price, err := decimal.NewFromString(o.price)
	if err != nil {
		return engine.LimitRequest{}, fmt.Errorf("price: %w", err)
	}
	return engine.LimitRequest{
		Instrument: models.Instrument{
			Symbol:   strings.ToUpper(o.symbol),
			Kind:     models.AssetOption,
			Currency: "USD",
			Exchange: "SMART",
			Strike:   strike,
			Expiry:   exp,
			Right:    models.Right(strings.ToUpper(o.right)),
		},
		Action:     models.Action(strings.ToUpper(o.action)),
		Quantity:   o.qty,
		LimitPrice: price,
		Wait:       o.wait,
	}, nil
}

func (o options) cspRequest() engine.CSPRequest {
	return engine.CSPRequest{Symbol: strings.ToUpper(o.symbol), MinStrikes: o.minStrikes, Quantity: o.qty}
}

func run(ctx context.Context, conn *connsvc.Manager, eng *engine.Engine, opts options) error {
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	var req engine.LimitRequest
	if opts.csp {
		c, err := eng.SelectCashSecuredPut(ctx, opts.cspRequest())
		if err != nil {
			return err
		}
		fmt.Printf("csp %s last=%s bid=%s ask=%s mid=%s cash=%s\n", c.Put.Contract.Instrument.Key(),
			c.Last, c.Put.Bid, c.Put.Ask, c.Mid, c.CashRequired.StringFixed(2))
		if req, err = c.LimitRequest(opts.wait); err != nil {
			return err
		}
	} else {
		var err error
		if req, err = opts.request(); err != nil {
			return err
		}
	}
	res, err := eng.PlaceLimitAndAutoCancel(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("order=%d perm=%d status=%s filled=%v avg=%s %s\n",
		res.OrderID, res.PermID, res.Status, res.FilledQty, res.AvgFillPrice, res.Reason)
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if !opts.csp {
		if _, err := opts.request(); err != nil {
			log.Fatal(err)
		}
	}
	_ = logger.Init(logger.Config{Level: "info"})

	ctx := context.Background()
	var runErr error
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			func() context.Context { return ctx },
			healthsvc.NewState,
		),
		config.Module(),
		gateway.Module(),
		connection.Module(),
		postgres.Module(),
		audit.Module(),
		notify.Module(),
		engine.Module(),
		fx.Invoke(func(conn *connsvc.Manager, eng *engine.Engine) {
			runErr = run(ctx, conn, eng, opts)
		}),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	_ = app.Stop(ctx)
	if runErr != nil {
		log.Fatal(runErr)
	}
}

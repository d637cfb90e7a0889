package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Opposite: сторона закрывающего ордера.
func (a Action) Opposite() Action {
	if a == ActionBuy {
		return ActionSell
	}
	return ActionBuy
}

// Sign: +1 для BUY, -1 для SELL.
func (a Action) Sign() int {
	if a == ActionBuy {
		return 1
	}
	return -1
}

type OrderType string

const (
	OrderMarket OrderType = "MKT"
	OrderLimit  OrderType = "LMT"
	OrderStop   OrderType = "STP"
)

type OrderStatus string

const (
	StatusPendingSubmit OrderStatus = "PendingSubmit"
	StatusPreSubmitted  OrderStatus = "PreSubmitted"
	StatusSubmitted     OrderStatus = "Submitted"
	StatusFilled        OrderStatus = "Filled"
	StatusCancelled     OrderStatus = "Cancelled"
	StatusInactive      OrderStatus = "Inactive"
)

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusInactive:
		return true
	}
	return false
}

// OrderBody: тело ордера, своё для каждого типа.
type OrderBody interface {
	Type() OrderType
}

type MarketOrder struct{}

func (MarketOrder) Type() OrderType { return OrderMarket }

type LimitOrder struct {
	LimitPrice decimal.Decimal
}

func (LimitOrder) Type() OrderType { return OrderLimit }

type StopOrder struct {
	StopPrice decimal.Decimal
}

func (StopOrder) Type() OrderType { return OrderStop }

// OrderRequest: то, что уходит брокеру.
type OrderRequest struct {
	Action   Action
	Quantity float64
	Body     OrderBody
	OcaGroup string
	Transmit bool
}

// OrderHandle: что брокер вернул на сабмит.
type OrderHandle struct {
	OrderID  int64
	PermID   int64
	ClientID int
}

// Order: локальная запись ордера. Статус меняет только реестр движка.
type Order struct {
	ID         int64
	PermID     int64
	Instrument Instrument
	Action     Action
	Quantity   float64
	Body       OrderBody
	Status     OrderStatus
	OcaGroup   string
	CreatedAt  time.Time
}

func (o Order) Type() OrderType {
	if o.Body == nil {
		return OrderMarket
	}
	return o.Body.Type()
}

// OrderState: текущее состояние ордера у брокера.
type OrderState struct {
	OrderID      int64
	PermID       int64
	Status       OrderStatus
	Filled       float64
	Remaining    float64
	AvgFillPrice decimal.Decimal
}

// OpenOrder: строка из списка открытых ордеров брокера.
type OpenOrder struct {
	OrderID  int64
	PermID   int64
	Contract Contract
	Action   Action
	Quantity float64
	Type     OrderType
	Status   OrderStatus
	OcaGroup string
}

// Fill: исполнение (execution report).
type Fill struct {
	ExecID   string
	OrderID  int64
	Contract Contract
	Action   Action
	Shares   float64
	Price    decimal.Decimal
	Time     time.Time
}

package service

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"bracket_bot/internal/helper"
	"bracket_bot/internal/models"
)

// Операции моста к шлюзу брокера.
const (
	opHello      = "hello"
	opResolve    = "resolveInstrument"
	opSubmit     = "submitOrder"
	opCancel     = "cancelOrder"
	opOrderState = "orderState"
	opExecutions = "executions"
	opOpenOrders = "openOrders"
	opPositions  = "positions"
	opBars       = "historicalBars"
	opOptChain   = "optionParams"
	opTickers    = "tickers"
)

// Коды ошибок моста.
const (
	codeResolution   = "resolution"
	codeDisconnected = "disconnected"
)

type request struct {
	ID   int64  `json:"id"`
	Op   string `json:"op"`
	Args any    `json:"args,omitempty"`
}

type response struct {
	ID    int64           `json:"id"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type helloArgs struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	ClientID int    `json:"clientId"`
}

type contractDTO struct {
	ConID       int64           `json:"conId,omitempty"`
	Symbol      string          `json:"symbol"`
	SecType     string          `json:"secType"`
	Currency    string          `json:"currency,omitempty"`
	Exchange    string          `json:"exchange,omitempty"`
	Strike      decimal.Decimal `json:"strike"`
	Expiry      string          `json:"lastTradeDateOrContractMonth,omitempty"`
	Right       string          `json:"right,omitempty"`
	LocalSymbol string          `json:"localSymbol,omitempty"`
}

func toContractDTO(c models.Contract) contractDTO {
	inst := c.Instrument
	return contractDTO{
		ConID:       c.ConID,
		Symbol:      inst.Symbol,
		SecType:     string(inst.Kind),
		Currency:    inst.Currency,
		Exchange:    inst.Exchange,
		Strike:      inst.Strike,
		Expiry:      helper.FormatExpiry(inst.Expiry),
		Right:       string(inst.Right),
		LocalSymbol: c.LocalSymbol,
	}
}

func (d contractDTO) model() models.Contract {
	exp, _ := helper.ParseExpiry(d.Expiry)
	if d.Expiry == "" {
		exp = time.Time{}
	}
	return models.Contract{
		ConID: d.ConID,
		Instrument: models.Instrument{
			Symbol:   d.Symbol,
			Kind:     models.AssetKind(d.SecType),
			Currency: d.Currency,
			Exchange: d.Exchange,
			Strike:   d.Strike,
			Expiry:   exp,
			Right:    models.Right(d.Right),
		},
		LocalSymbol: d.LocalSymbol,
	}
}

type orderDTO struct {
	Action     string           `json:"action"`
	Quantity   float64          `json:"totalQuantity"`
	Type       string           `json:"orderType"`
	LimitPrice *decimal.Decimal `json:"lmtPrice,omitempty"`
	StopPrice  *decimal.Decimal `json:"auxPrice,omitempty"`
	OcaGroup   string           `json:"ocaGroup,omitempty"`
	OcaType    int              `json:"ocaType,omitempty"`
	Transmit   bool             `json:"transmit"`
}

// ocaCancelWithBlock: исполнение одной ноги снимает остальные.
const ocaCancelWithBlock = 1

func toOrderDTO(r models.OrderRequest) orderDTO {
	d := orderDTO{
		Action:   string(r.Action),
		Quantity: r.Quantity,
		Type:     string(r.Body.Type()),
		OcaGroup: r.OcaGroup,
		Transmit: r.Transmit,
	}
	switch b := r.Body.(type) {
	case models.LimitOrder:
		d.LimitPrice = &b.LimitPrice
	case models.StopOrder:
		d.StopPrice = &b.StopPrice
	}
	if r.OcaGroup != "" {
		d.OcaType = ocaCancelWithBlock
	}
	return d
}

type submitArgs struct {
	Contract contractDTO `json:"contract"`
	Order    orderDTO    `json:"order"`
}

type handleDTO struct {
	OrderID  int64 `json:"orderId"`
	PermID   int64 `json:"permId"`
	ClientID int   `json:"clientId"`
}

func (h handleDTO) model() models.OrderHandle {
	return models.OrderHandle{OrderID: h.OrderID, PermID: h.PermID, ClientID: h.ClientID}
}

func toHandleDTO(h models.OrderHandle) handleDTO {
	return handleDTO{OrderID: h.OrderID, PermID: h.PermID, ClientID: h.ClientID}
}

type orderStateDTO struct {
	OrderID      int64           `json:"orderId"`
	PermID       int64           `json:"permId"`
	Status       string          `json:"status"`
	Filled       float64         `json:"filled"`
	Remaining    float64         `json:"remaining"`
	AvgFillPrice decimal.Decimal `json:"avgFillPrice"`
}

func (s orderStateDTO) model() models.OrderState {
	return models.OrderState{
		OrderID:      s.OrderID,
		PermID:       s.PermID,
		Status:       models.OrderStatus(s.Status),
		Filled:       s.Filled,
		Remaining:    s.Remaining,
		AvgFillPrice: s.AvgFillPrice,
	}
}

type fillDTO struct {
	ExecID   string          `json:"execId"`
	OrderID  int64           `json:"orderId"`
	Contract contractDTO     `json:"contract"`
	Side     string          `json:"side"`
	Shares   float64         `json:"shares"`
	Price    decimal.Decimal `json:"price"`
	Time     time.Time       `json:"time"`
}

// side в отчётах об исполнении: BOT/SLD.
func sideAction(side string) models.Action {
	switch side {
	case "SLD", "SELL":
		return models.ActionSell
	}
	return models.ActionBuy
}

func (f fillDTO) model() models.Fill {
	return models.Fill{
		ExecID:   f.ExecID,
		OrderID:  f.OrderID,
		Contract: f.Contract.model(),
		Action:   sideAction(f.Side),
		Shares:   f.Shares,
		Price:    f.Price,
		Time:     f.Time,
	}
}

type openOrderDTO struct {
	OrderID  int64       `json:"orderId"`
	PermID   int64       `json:"permId"`
	Contract contractDTO `json:"contract"`
	Action   string      `json:"action"`
	Quantity float64     `json:"totalQuantity"`
	Type     string      `json:"orderType"`
	Status   string      `json:"status"`
	OcaGroup string      `json:"ocaGroup,omitempty"`
}

func (o openOrderDTO) model() models.OpenOrder {
	return models.OpenOrder{
		OrderID:  o.OrderID,
		PermID:   o.PermID,
		Contract: o.Contract.model(),
		Action:   models.Action(o.Action),
		Quantity: o.Quantity,
		Type:     models.OrderType(o.Type),
		Status:   models.OrderStatus(o.Status),
		OcaGroup: o.OcaGroup,
	}
}

type positionDTO struct {
	Account  string          `json:"account"`
	Contract contractDTO     `json:"contract"`
	Position float64         `json:"position"`
	AvgCost  decimal.Decimal `json:"avgCost"`
}

func (p positionDTO) model() models.PositionRecord {
	return models.PositionRecord{
		Account:  p.Account,
		Contract: p.Contract.model(),
		Quantity: p.Position,
		AvgCost:  p.AvgCost,
	}
}

type barsArgs struct {
	Contract   contractDTO `json:"contract"`
	Duration   string      `json:"durationStr"`
	BarSize    string      `json:"barSizeSetting"`
	WhatToShow string      `json:"whatToShow"`
	UseRTH     bool        `json:"useRTH"`
}

type barDTO struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

func (b barDTO) model() models.Bar {
	return models.Bar{
		Time:   b.Date,
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

// whatToShow: у валют нет TRADES.
func whatToShow(inst models.Instrument) string {
	if inst.Kind == models.AssetForex {
		return "MIDPOINT"
	}
	return "TRADES"
}

type optionChainDTO struct {
	Underlying  contractDTO       `json:"underlying"`
	Last        decimal.Decimal   `json:"last"`
	Expirations []string          `json:"expirations"`
	Strikes     []decimal.Decimal `json:"strikes"`
}

func (d optionChainDTO) model() models.OptionChain {
	out := models.OptionChain{
		Underlying: d.Underlying.model(),
		Last:       d.Last,
		Strikes:    d.Strikes,
	}
	for _, raw := range d.Expirations {
		if t, err := helper.ParseExpiry(raw); err == nil {
			out.Expirations = append(out.Expirations, t)
		}
	}
	return out
}

type tickerDTO struct {
	Contract   contractDTO     `json:"contract"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	ImpliedVol *float64        `json:"impliedVol,omitempty"`
}

func (t tickerDTO) model() models.OptionQuote {
	q := models.OptionQuote{Contract: t.Contract.model(), Bid: t.Bid, Ask: t.Ask}
	if t.ImpliedVol != nil {
		q.IV = *t.ImpliedVol
	}
	return q
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionChain: экспирации и страйки опционов на базовый актив плюс его последняя цена.
type OptionChain struct {
	Underlying  Contract
	Last        decimal.Decimal
	Expirations []time.Time
	Strikes     []decimal.Decimal
}

// OptionQuote: котировка опциона. Нулевые bid/ask: котировки нет, IV 0: неизвестна.
type OptionQuote struct {
	Contract Contract
	Bid      decimal.Decimal
	Ask      decimal.Decimal
	IV       float64
}

var two = decimal.NewFromInt(2)

// Mid: середина спреда, только если обе стороны положительные.
func (q OptionQuote) Mid() (decimal.Decimal, bool) {
	if !q.Bid.IsPositive() || !q.Ask.IsPositive() {
		return decimal.Zero, false
	}
	return q.Bid.Add(q.Ask).Div(two), true
}

package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AssetKind string

const (
	AssetForex  AssetKind = "CASH"
	AssetStock  AssetKind = "STK"
	AssetOption AssetKind = "OPT"
)

type Right string

const (
	RightCall Right = "C"
	RightPut  Right = "P"
)

func (r Right) Valid() bool { return r == RightCall || r == RightPut }

// Instrument: то, что просим у брокера зарезолвить. После резолва не меняется.
type Instrument struct {
	Symbol   string    `json:"symbol"`
	Kind     AssetKind `json:"kind"`
	Currency string    `json:"currency,omitempty"`
	Exchange string    `json:"exchange,omitempty"`

	// только для опционов
	Strike decimal.Decimal `json:"strike"`
	Expiry time.Time       `json:"expiry"`
	Right  Right           `json:"right,omitempty"`
}

// Forex: пара в виде брокера, база в Symbol, котируемая валюта в Currency (EUR + USD).
func Forex(pair string) Instrument {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	if len(pair) != 6 {
		return Instrument{Symbol: pair, Kind: AssetForex, Exchange: "IDEALPRO"}
	}
	return Instrument{Symbol: pair[:3], Kind: AssetForex, Currency: pair[3:], Exchange: "IDEALPRO"}
}

// Key: ключ для локов и поиска экспозиции. Для валют в ключе обе стороны пары.
func (i Instrument) Key() string {
	sym := strings.ToUpper(i.Symbol)
	switch i.Kind {
	case AssetOption:
		return sym + ":" + i.Expiry.Format("20060102") + ":" + i.Strike.String() + string(i.Right)
	case AssetForex:
		// EURUSD и EUR+USD дают один ключ
		if name := i.Name(); len(name) == 6 {
			return name[:3] + "." + name[3:]
		}
		return sym + "." + strings.ToUpper(i.Currency)
	}
	return sym
}

// Name: имя для логов и внешних ключей (EURUSD, AAPL).
func (i Instrument) Name() string {
	sym := strings.ToUpper(i.Symbol)
	if i.Kind == AssetForex && len(sym) == 3 {
		return sym + strings.ToUpper(i.Currency)
	}
	return sym
}

func (i Instrument) IsOption() bool { return i.Kind == AssetOption }

// Contract: зарезолвленный брокером инструмент.
type Contract struct {
	ConID       int64      `json:"conId"`
	Instrument  Instrument `json:"instrument"`
	LocalSymbol string     `json:"localSymbol,omitempty"`
}

func (c Contract) Key() string { return c.Instrument.Key() }

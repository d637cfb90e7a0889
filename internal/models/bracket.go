package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BracketState string

const (
	BracketPending   BracketState = "Pending"
	BracketArmed     BracketState = "Armed"
	BracketResolved  BracketState = "Resolved"
	BracketFlattened BracketState = "Flattened"
)

// BracketGroup: вход + TP + SL в одной OCA-группе.
type BracketGroup struct {
	Contract   Contract
	Action     Action
	Entry      Order
	TakeProfit Order
	StopLoss   Order
	OcaGroup   string

	FilledQty float64
	FillPrice decimal.Decimal
	TakePrice decimal.Decimal
	StopPrice decimal.Decimal
	State     BracketState
	ArmedAt   time.Time
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionRecord: позиция у брокера, локально только читаем.
type PositionRecord struct {
	Account  string
	Contract Contract
	Quantity float64 // со знаком
	AvgCost  decimal.Decimal
}

// PositionJournalEntry: запись в data/positions.json.
type PositionJournalEntry struct {
	EntryDateTime string   `json:"entryDateTime"`
	SymbolName    string   `json:"symbolName"`
	OrderID       int64    `json:"orderId"`
	Qty           float64  `json:"qty"`
	EntryPrice    float64  `json:"entryPrice"`
	ExitDateTime  *string  `json:"exitDateTime"`
	ExitPrice     *float64 `json:"exitPrice"`
}

const JournalTimeLayout = "2006-01-02 15:04:05"

func FormatJournalTime(t time.Time) string { return t.Format(JournalTimeLayout) }

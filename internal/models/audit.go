package models

import "time"

const (
	ReasonCancelledByTimeout = "Cancelled by timeout"
	ReasonCancelErrorPrefix  = "Cancel error: "
)

// OrderAuditRow: строка журнала ордеров (локальный csv + внешний sink).
type OrderAuditRow struct {
	Timestamp       time.Time
	Ticker          string
	Expiry          string
	Strike          string
	Premium         string
	OrderStatus     OrderStatus
	ClientID        int
	PermID          int64
	ReasonCancelled string
}

var OrderAuditHeader = []string{
	"timestamp", "ticker", "expiry", "strike", "premium",
	"orderStatus", "clientId", "permId", "reasonCancelled",
}

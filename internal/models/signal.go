package models

type Decision string

const (
	DecisionHold Decision = "HOLD"
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
)

func (d Decision) Actionable() bool { return d == DecisionBuy || d == DecisionSell }

func (d Decision) Action() Action {
	if d == DecisionSell {
		return ActionSell
	}
	return ActionBuy
}

// SignalAuditEntry: запись в data/signals.json.
type SignalAuditEntry struct {
	Symbol    string  `json:"symbol"`
	DateTime  string  `json:"datetime"`
	Direction string  `json:"direction"`
	Price     float64 `json:"price"`
}

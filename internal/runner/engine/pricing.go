package engine

import (
	"github.com/shopspring/decimal"

	"bracket_bot/internal/helper"
	"bracket_bot/internal/models"
)

// BracketPrices: TP/SL от фактической цены входа, смещения в пипсах.
// BUY: tp = fill + target, sl = fill - stop. SELL наоборот.
func BracketPrices(action models.Action, fill decimal.Decimal, targetPips, stopPips float64, pip decimal.Decimal) (take, stop decimal.Decimal) {
	sign := action.Sign()
	take = helper.OffsetPrice(fill, targetPips, pip, sign)
	stop = helper.OffsetPrice(fill, stopPips, pip, -sign)
	return take, stop
}

type fillSummary struct {
	qty float64
	avg decimal.Decimal
	at  models.Fill
}

// summarize: объём и средневзвешенная цена исполнений ордера (без дублей execId).
func summarize(fills []models.Fill, orderID int64) fillSummary {
	seen := make(map[string]struct{}, len(fills))
	var (
		sum   fillSummary
		total decimal.Decimal
	)
	for _, f := range fills {
		if f.OrderID != orderID {
			continue
		}
		if f.ExecID != "" {
			if _, dup := seen[f.ExecID]; dup {
				continue
			}
			seen[f.ExecID] = struct{}{}
		}
		sum.qty += f.Shares
		total = total.Add(f.Price.Mul(decimal.NewFromFloat(f.Shares)))
		sum.at = f
	}
	if sum.qty > 0 {
		sum.avg = total.Div(decimal.NewFromFloat(sum.qty))
	}
	return sum
}

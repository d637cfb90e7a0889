package helper

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bracket_bot/internal/models"
)

var (
	pipDefault = decimal.New(1, -4) // 0.0001
	pipJPY     = decimal.New(1, -2) // 0.01
	tickOption = decimal.New(1, -2)
)

// PipSize для инструмента. JPY-пары 0.01, остальные 0.0001, опционы тик 0.01.
func PipSize(inst models.Instrument) decimal.Decimal {
	if inst.IsOption() {
		return tickOption
	}
	if strings.EqualFold(inst.Currency, "JPY") || strings.Contains(strings.ToUpper(inst.Symbol), "JPY") {
		return pipJPY
	}
	return pipDefault
}

// OffsetPrice: цена на offset пипсов от base (sign = +1/-1).
func OffsetPrice(base decimal.Decimal, pips float64, pip decimal.Decimal, sign int) decimal.Decimal {
	delta := decimal.NewFromFloat(pips).Mul(pip)
	if sign < 0 {
		return base.Sub(delta)
	}
	return base.Add(delta)
}

func RoundDownToTick(px, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return px
	}
	return px.Div(tick).Floor().Mul(tick)
}

func RoundUpToTick(px, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return px
	}
	return px.Div(tick).Ceil().Mul(tick)
}

// NormalizeExpiry: суббота/воскресенье откатываются на пятницу.
func NormalizeExpiry(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, -2)
	}
	return t
}

var expiryLayouts = []string{"20060102", "2006-01-02", "2006/01/02"}

// ParseExpiry понимает YYYYMMDD и YYYY-MM-DD.
func ParseExpiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad expiry %q", raw)
}

func FormatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("20060102")
}

// UntilNextSlot: сколько ждать до следующего слота (например :00/:30 при step=30s).
func UntilNextSlot(now time.Time, step time.Duration) time.Duration {
	if step <= 0 {
		return 0
	}
	next := now.Truncate(step).Add(step)
	return next.Sub(now)
}

package helper

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bracket_bot/internal/models"
)

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NearestFriday: ближайшая пятничная экспирация не раньше today, иначе самая ранняя.
func NearestFriday(expirations []time.Time, today time.Time) (time.Time, bool) {
	if len(expirations) == 0 {
		return time.Time{}, false
	}
	day := dateOf(today)
	var best, earliest time.Time
	for _, e := range expirations {
		d := dateOf(e)
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
		if d.Weekday() != time.Friday || d.Before(day) {
			continue
		}
		if best.IsZero() || d.Before(best) {
			best = d
		}
	}
	if best.IsZero() {
		return earliest, true
	}
	return best, true
}

// StrikeBand: не меньше n уникальных страйков вокруг ближайшего к last (если столько есть).
func StrikeBand(strikes []decimal.Decimal, last decimal.Decimal, n int) []decimal.Decimal {
	uniq := make([]decimal.Decimal, 0, len(strikes))
	seen := make(map[string]bool, len(strikes))
	for _, s := range strikes {
		if !s.IsPositive() || seen[s.String()] {
			continue
		}
		seen[s.String()] = true
		uniq = append(uniq, s)
	}
	if len(uniq) == 0 {
		return nil
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].LessThan(uniq[j]) })

	atm := 0
	for i, s := range uniq {
		if s.Sub(last).Abs().LessThan(uniq[atm].Sub(last).Abs()) {
			atm = i
		}
	}

	half := max(1, n/2)
	lo := max(0, atm-half)
	hi := min(len(uniq), atm+half+1)
	// у края добираем с другой стороны
	for hi-lo < n && (lo > 0 || hi < len(uniq)) {
		if lo > 0 {
			lo--
		}
		if hi-lo < n && hi < len(uniq) {
			hi++
		}
	}
	return append([]decimal.Decimal(nil), uniq[lo:hi]...)
}

// SelectCashSecuredPut: пут вне денег с ближайшим к last страйком ниже last.
func SelectCashSecuredPut(quotes []models.OptionQuote, last decimal.Decimal) (models.OptionQuote, bool) {
	var (
		best  models.OptionQuote
		dist  decimal.Decimal
		found bool
	)
	for _, q := range quotes {
		inst := q.Contract.Instrument
		if inst.Right != models.RightPut || !inst.Strike.LessThan(last) {
			continue
		}
		d := last.Sub(inst.Strike)
		if !found || d.LessThan(dist) {
			best, dist, found = q, d, true
		}
	}
	return best, found
}

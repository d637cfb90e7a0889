package service

import (
	"sort"

	"bracket_bot/internal/models"
)

// Merge добавляет к серии только свежие свечи (новее последней сохранённой),
// дедуплицирует по времени с приоритетом первой записи и сортирует.
// raw: свечи как пришли от брокера.
func Merge(symbol string, existing models.SymbolSeries, newBars []models.Bar) (raw []models.Bar, merged models.SymbolSeries) {
	raw = append([]models.Bar(nil), newBars...)

	base := normalize(existing)

	fresh := normalize(newBars)
	if last, ok := base.Last(); ok {
		i := sort.Search(len(fresh), func(i int) bool { return fresh[i].Time.After(last.Time) })
		fresh = fresh[i:]
	}

	merged = make(models.SymbolSeries, 0, len(base)+len(fresh))
	merged = append(merged, base...)
	merged = append(merged, fresh...)
	return raw, merged
}

// normalize: стабильная сортировка + выкидываем повторы времени, оставляя первый.
func normalize(bars []models.Bar) models.SymbolSeries {
	out := make(models.SymbolSeries, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	n := 0
	for i := range out {
		if n > 0 && out[i].Time.Equal(out[n-1].Time) {
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

// Annotate ставит маркер на свечу с временем t. false: такой свечи нет.
func Annotate(series models.SymbolSeries, bar models.Bar, status string) bool {
	i := sort.Search(len(series), func(i int) bool { return !series[i].Time.Before(bar.Time) })
	if i >= len(series) || !series[i].Time.Equal(bar.Time) {
		return false
	}
	series[i].Status = status
	return true
}

package models

import "time"

const StatusNone = "null"

// Bar: одна свеча. Timestamp уникален в серии.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Status string // маркер сигнала, "" = нет
}

func (b Bar) Annotated() bool { return b.Status != "" && b.Status != StatusNone }

// SymbolSeries: свечи по возрастанию времени без дублей.
type SymbolSeries []Bar

func (s SymbolSeries) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Tail: последние n свечей (или все).
func (s SymbolSeries) Tail(n int) SymbolSeries {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Valid: строго возрастающие уникальные timestamps.
func (s SymbolSeries) Valid() bool {
	for i := 1; i < len(s); i++ {
		if !s[i].Time.After(s[i-1].Time) {
			return false
		}
	}
	return true
}

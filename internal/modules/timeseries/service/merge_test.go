package service

import (
	"testing"
	"time"

	"bracket_bot/internal/models"
)

var t0 = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

func bar(sec int, close float64) models.Bar {
	return models.Bar{Time: t0.Add(time.Duration(sec) * time.Second), Open: close, High: close, Low: close, Close: close}
}

func marked(b models.Bar, status string) models.Bar {
	b.Status = status
	return b
}

func sameSeries(a, b models.SymbolSeries) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Time.Equal(b[i].Time) || a[i].Close != b[i].Close || a[i].Status != b[i].Status {
			return false
		}
	}
	return true
}

var mergeCases = []struct {
	name     string
	existing models.SymbolSeries
	newBars  []models.Bar
	wantLen  int
}{
	{"empty both", nil, nil, 0},
	{"empty existing", nil, []models.Bar{bar(0, 1), bar(30, 2)}, 2},
	{"trailing bar", models.SymbolSeries{bar(0, 1), bar(30, 2)}, []models.Bar{bar(30, 9), bar(60, 3)}, 3},
	{"only old bars", models.SymbolSeries{bar(0, 1), bar(30, 2)}, []models.Bar{bar(0, 7)}, 2},
	{"unsorted new", models.SymbolSeries{bar(0, 1)}, []models.Bar{bar(90, 4), bar(30, 2), bar(60, 3)}, 4},
	{"duplicates in new", nil, []models.Bar{bar(30, 2), bar(30, 5), bar(0, 1)}, 2},
	{"dirty existing", models.SymbolSeries{bar(30, 2), bar(0, 1), bar(30, 8)}, []models.Bar{bar(60, 3)}, 3},
}

func TestMergeInvariants(t *testing.T) {
	for _, tc := range mergeCases {
		t.Run(tc.name, func(t *testing.T) {
			raw, merged := Merge("EURUSD", tc.existing, tc.newBars)
			if len(raw) != len(tc.newBars) {
				t.Fatalf("raw = %d bars, want %d", len(raw), len(tc.newBars))
			}
			if !merged.Valid() {
				t.Fatalf("timestamps not strictly increasing: %+v", merged)
			}
			if len(merged) != tc.wantLen {
				t.Fatalf("len = %d, want %d", len(merged), tc.wantLen)
			}
		})
	}
}

func TestMergeIdempotent(t *testing.T) {
	for _, tc := range mergeCases {
		t.Run(tc.name, func(t *testing.T) {
			_, once := Merge("EURUSD", tc.existing, tc.newBars)
			_, twice := Merge("EURUSD", once, tc.newBars)
			if !sameSeries(once, twice) {
				t.Fatalf("merge not idempotent:\n once=%+v\ntwice=%+v", once, twice)
			}
		})
	}
}

func TestMergeKeepsStoredRow(t *testing.T) {
	existing := models.SymbolSeries{bar(0, 1), marked(bar(30, 2), "BUY")}
	_, merged := Merge("EURUSD", existing, []models.Bar{bar(30, 2.5), bar(60, 3)})

	if merged[1].Status != "BUY" {
		t.Fatalf("annotation lost: %+v", merged[1])
	}
	if merged[1].Close != 2 {
		t.Fatalf("stored row replaced by fetched duplicate: %+v", merged[1])
	}
	if merged[2].Close != 3 {
		t.Fatalf("trailing bar missing: %+v", merged)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	existing := models.SymbolSeries{bar(30, 2), bar(0, 1)}
	Merge("EURUSD", existing, []models.Bar{bar(60, 3)})
	if !existing[0].Time.Equal(t0.Add(30 * time.Second)) {
		t.Fatal("existing series was reordered in place")
	}
}

func TestAnnotate(t *testing.T) {
	series := models.SymbolSeries{bar(0, 1), bar(30, 2)}
	if !Annotate(series, bar(30, 0), "SELL") {
		t.Fatal("annotate failed")
	}
	if series[1].Status != "SELL" {
		t.Fatalf("status = %q", series[1].Status)
	}
	if Annotate(series, bar(45, 0), "SELL") {
		t.Fatal("annotated a missing bar")
	}
}

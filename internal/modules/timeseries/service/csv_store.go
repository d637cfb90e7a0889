package service

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/config"
)

const dateLayout = "2006-01-02 15:04:05-07:00"

var (
	csvHeader   = []string{"Date", "Open", "High", "Low", "Close", "Volume", "status"}
	readLayouts = []string{dateLayout, "2006-01-02 15:04:05", "20060102  15:04:05", "20060102 15:04:05", time.RFC3339}
)

// Store: история свечей по символу в data/<SYMBOL>.csv.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(cfg *config.Config) *Store {
	return NewStoreAt(cfg.Storage.DataDir)
}

func NewStoreAt(dir string) *Store {
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) lock(symbol string) func() {
	s.mu.Lock()
	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Store) Path(symbol string) string {
	return filepath.Join(s.dir, strings.ToUpper(symbol)+".csv")
}

func (s *Store) Exists(symbol string) bool {
	_, err := os.Stat(s.Path(symbol))
	return err == nil
}

// Symbols: символы, по которым есть история.
func (s *Store) Symbols() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "list data dir")
	}
	var out []string
	for _, e := range entries {
		if name := e.Name(); !e.IsDir() && strings.HasSuffix(name, ".csv") {
			out = append(out, strings.TrimSuffix(name, ".csv"))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Load: нет файла = пустая серия.
func (s *Store) Load(symbol string) (models.SymbolSeries, error) {
	defer s.lock(symbol)()
	return s.load(symbol)
}

func (s *Store) load(symbol string) (models.SymbolSeries, error) {
	f, err := os.Open(s.Path(symbol))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", symbol)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out models.SymbolSeries
	for line := 0; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read history %s", symbol)
		}
		if line == 0 && len(rec) > 0 && rec[0] == csvHeader[0] {
			continue
		}
		bar, err := parseRow(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "history %s line %d", symbol, line+1)
		}
		out = append(out, bar)
	}
	return normalize(out), nil
}

// Save перезаписывает файл атомарно (tmp + rename).
func (s *Store) Save(symbol string, series models.SymbolSeries) error {
	defer s.lock(symbol)()
	return s.save(symbol, series)
}

func (s *Store) save(symbol string, series models.SymbolSeries) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}
	tmp, err := os.CreateTemp(s.dir, strings.ToUpper(symbol)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp history")
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	_ = w.Write(csvHeader)
	for _, b := range series {
		_ = w.Write(formatRow(b))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write history %s", symbol)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close history %s", symbol)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), s.Path(symbol)), "replace history %s", symbol)
}

// Update: load, Merge, save под локом символа.
func (s *Store) Update(symbol string, newBars []models.Bar) (raw []models.Bar, merged models.SymbolSeries, err error) {
	defer s.lock(symbol)()

	existing, err := s.load(symbol)
	if err != nil {
		return nil, nil, err
	}
	raw, merged = Merge(symbol, existing, newBars)
	if err := s.save(symbol, merged); err != nil {
		return raw, nil, err
	}
	return raw, merged, nil
}

// Annotate пишет маркер сигнала в сохранённую свечу.
func (s *Store) Annotate(symbol string, bar models.Bar, status string) error {
	defer s.lock(symbol)()

	series, err := s.load(symbol)
	if err != nil {
		return err
	}
	if !Annotate(series, bar, status) {
		return errors.Errorf("no bar %s for %s", bar.Time.Format(dateLayout), symbol)
	}
	return s.save(symbol, series)
}

func formatRow(b models.Bar) []string {
	status := b.Status
	if status == "" {
		status = models.StatusNone
	}
	return []string{
		b.Time.Format(dateLayout),
		formatFloat(b.Open),
		formatFloat(b.High),
		formatFloat(b.Low),
		formatFloat(b.Close),
		formatFloat(b.Volume),
		status,
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func parseRow(rec []string) (models.Bar, error) {
	if len(rec) < 6 {
		return models.Bar{}, errors.Errorf("want >= 6 columns, got %d", len(rec))
	}
	ts, err := parseTime(rec[0])
	if err != nil {
		return models.Bar{}, err
	}
	var vals [5]float64
	for i := range vals {
		raw := strings.TrimSpace(rec[i+1])
		if raw == "" {
			continue
		}
		if vals[i], err = strconv.ParseFloat(raw, 64); err != nil {
			return models.Bar{}, errors.Wrapf(err, "column %s", csvHeader[i+1])
		}
	}
	bar := models.Bar{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
	if len(rec) > 6 {
		if st := strings.TrimSpace(rec[6]); st != models.StatusNone {
			bar.Status = st
		}
	}
	return bar, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("bad date %q", raw)
}

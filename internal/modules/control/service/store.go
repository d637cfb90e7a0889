package service

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"bracket_bot/internal/modules/config"
)

// File: содержимое config/symbols.yaml: символ -> торгуем ли.
type File struct {
	Symbols map[string]bool `yaml:"symbols"`
}

type EnableResult int

const (
	Added EnableResult = iota
	Started
	AlreadyActive
)

// Store: флаги торговли по символам. Пишет control API, читает драйвер каждый цикл.
type Store struct {
	path     string
	defaults []string

	mu sync.Mutex
}

func NewStore(cfg *config.Config) *Store {
	return NewStoreAt(cfg.Storage.ControlFile, cfg.Trading.Symbols)
}

func NewStoreAt(path string, defaults []string) *Store {
	return &Store{path: path, defaults: defaults}
}

func normalize(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }

// Reset: при старте всё выключено.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := File{Symbols: make(map[string]bool, len(s.defaults))}
	for _, sym := range s.defaults {
		f.Symbols[normalize(sym)] = false
	}
	return s.write(f)
}

// Load: нет файла = ничего не включено.
func (s *Store) Load() (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.read()
	return f.Symbols, err
}

// Active: включённые символы по алфавиту.
func (s *Store) Active() ([]string, error) {
	m, err := s.Load()
	if err != nil {
		return nil, err
	}
	var out []string
	for sym, on := range m {
		if on {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Enable(symbol string) (EnableResult, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return 0, errors.New("empty symbol")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return 0, err
	}
	on, known := f.Symbols[symbol]
	if on {
		return AlreadyActive, nil
	}
	f.Symbols[symbol] = true
	if err := s.write(f); err != nil {
		return 0, err
	}
	if known {
		return Started, nil
	}
	return Added, nil
}

// Disable возвращает false, если символа нет в файле.
func (s *Store) Disable(symbol string) (bool, error) {
	symbol = normalize(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return false, err
	}
	if _, ok := f.Symbols[symbol]; !ok {
		return false, nil
	}
	f.Symbols[symbol] = false
	return true, s.write(f)
}

func (s *Store) read() (File, error) {
	f := File{Symbols: map[string]bool{}}
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return f, errors.Wrap(err, "read control file")
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{Symbols: map[string]bool{}}, errors.Wrapf(err, "parse %s", s.path)
	}
	if f.Symbols == nil {
		f.Symbols = map[string]bool{}
	}
	return f, nil
}

func (s *Store) write(f File) error {
	raw, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "marshal control file")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create control dir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.Wrap(err, "write control file")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "replace control file")
}

package service

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/config"
)

// Journal: json-файлы с открытыми позициями и сигналами.
type Journal struct {
	positionsPath string
	signalsPath   string

	mu sync.Mutex
}

func NewJournal(cfg *config.Config) *Journal {
	return NewJournalAt(cfg.Storage.PositionsFile, cfg.Storage.SignalsFile)
}

func NewJournalAt(positionsPath, signalsPath string) *Journal {
	return &Journal{positionsPath: positionsPath, signalsPath: signalsPath}
}

func (j *Journal) AddPosition(e models.PositionJournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var list []models.PositionJournalEntry
	if err := readJSON(j.positionsPath, &list); err != nil {
		return err
	}
	list = append(list, e)
	return writeJSON(j.positionsPath, list)
}

// ClosePosition проставляет выход по orderId входа. false: записи нет.
func (j *Journal) ClosePosition(orderID int64, exitAt time.Time, exitPrice float64) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var list []models.PositionJournalEntry
	if err := readJSON(j.positionsPath, &list); err != nil {
		return false, err
	}
	found := false
	for i := range list {
		if list[i].OrderID != orderID || list[i].ExitDateTime != nil {
			continue
		}
		ts := models.FormatJournalTime(exitAt)
		px := exitPrice
		list[i].ExitDateTime = &ts
		list[i].ExitPrice = &px
		found = true
		break
	}
	if !found {
		return false, nil
	}
	return true, writeJSON(j.positionsPath, list)
}

func (j *Journal) Positions() ([]models.PositionJournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var list []models.PositionJournalEntry
	return list, readJSON(j.positionsPath, &list)
}

func (j *Journal) AddSignal(e models.SignalAuditEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var list []models.SignalAuditEntry
	if err := readJSON(j.signalsPath, &list); err != nil {
		return err
	}
	list = append(list, e)
	return writeJSON(j.signalsPath, list)
}

func (j *Journal) Signals() ([]models.SignalAuditEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var list []models.SignalAuditEntry
	return list, readJSON(j.signalsPath, &list)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) || (err == nil && len(data) == 0) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	return errors.Wrapf(sonic.Unmarshal(data, v), "decode %s", path)
}

func writeJSON(path string, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create journal dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(os.Rename(tmp, path), "replace %s", path)
}

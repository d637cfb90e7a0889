package service

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/config"
)

const auditTimeLayout = "2006-01-02 15:04:05"

// OrderLog: локальный append-only csv.
type OrderLog struct {
	path string
	mu   sync.Mutex
}

func NewOrderLog(cfg *config.Config) *OrderLog {
	return NewOrderLogAt(cfg.Storage.OrderLog)
}

func NewOrderLogAt(path string) *OrderLog {
	return &OrderLog{path: path}
}

func (l *OrderLog) Name() string { return "csv" }

func (l *OrderLog) Append(_ context.Context, row models.OrderAuditRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(err, "create log dir")
	}
	_, statErr := os.Stat(l.path)
	newFile := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open order log")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		_ = w.Write(models.OrderAuditHeader)
	}
	_ = w.Write(auditRecord(row))
	w.Flush()
	return errors.Wrap(w.Error(), "write order log")
}

func auditRecord(row models.OrderAuditRow) []string {
	ts := row.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return []string{
		ts.Format(auditTimeLayout),
		row.Ticker,
		row.Expiry,
		row.Strike,
		row.Premium,
		string(row.OrderStatus),
		strconv.Itoa(row.ClientID),
		strconv.FormatInt(row.PermID, 10),
		row.ReasonCancelled,
	}
}

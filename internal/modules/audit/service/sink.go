package service

import (
	"context"

	"github.com/pkg/errors"

	"bracket_bot/internal/metrics"
	"bracket_bot/internal/models"
	"bracket_bot/pkg/logger"
)

// Sink: куда пишем строки журнала ордеров.
type Sink interface {
	Name() string
	Append(ctx context.Context, row models.OrderAuditRow) error
}

// Recorder пишет строку во все sink'и. Ошибки логируются и не ломают торговлю.
type Recorder struct {
	sinks []Sink
}

func NewRecorder(sinks ...Sink) *Recorder {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Recorder{sinks: out}
}

// Record возвращает ErrAuditSink, если хоть один sink упал; остальные всё равно пишутся.
func (r *Recorder) Record(ctx context.Context, row models.OrderAuditRow) error {
	var failed []string
	for _, s := range r.sinks {
		if err := s.Append(ctx, row); err != nil {
			metrics.AuditErrors.WithLabelValues(s.Name()).Inc()
			logger.Error("[AUDIT] %s: запись %s не удалась: %v", s.Name(), row.Ticker, err)
			failed = append(failed, s.Name())
		}
	}
	if len(failed) > 0 {
		return errors.Wrapf(models.ErrAuditSink, "failed sinks %v", failed)
	}
	return nil
}

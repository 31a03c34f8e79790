package consumer

import (
	"context"

	"go.uber.org/zap"
)

// Log records snapshot summaries. Finals log at info, partials at debug.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a Log consumer.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Deliver implements Consumer.
func (l *Log) Deliver(_ context.Context, s Snapshot) error {
	fields := []zap.Field{
		zap.Uint64("request_id", s.RequestID),
		zap.String("url", s.URL),
		zap.String("status", string(s.Status)),
		zap.Int("candidates", len(s.Candidates)),
		zap.Int("batches", s.Batches),
	}
	if len(s.Candidates) > 0 {
		fields = append(fields, zap.String("top", s.Candidates[0].Href))
	}
	if s.Error != "" {
		fields = append(fields, zap.String("error", s.Error))
	}

	if s.Final {
		l.logger.Info("Ranking final", fields...)
	} else {
		l.logger.Debug("Ranking partial", fields...)
	}
	return nil
}

package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/urlfinder/internal/progress"
)

// LogSink writes progress events as structured log lines. Batch boundaries
// log at Info; per-candidate ticks log at Debug unless Verbose is set.
type LogSink struct {
	logger  *zap.Logger
	verbose bool
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger, verbose bool) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("progress"), verbose: verbose}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		level := zapcore.InfoLevel
		if evt.Stage == progress.StageCandidateDone && !s.verbose {
			level = zapcore.DebugLevel
		}
		ce := s.logger.Check(level, "batch progress")
		if ce == nil {
			continue
		}
		fields := []zap.Field{
			zap.String("batch_id", evt.BatchUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.Int("completed", evt.Completed),
			zap.Int("total", evt.Total),
			zap.Duration("elapsed", evt.Dur),
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		ce.Write(fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

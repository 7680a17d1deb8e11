package sink

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// SimulateSink discards every resource and only logs it.
type SimulateSink struct {
	logger *slog.Logger
	count  atomic.Int64
	bytes  atomic.Int64
}

// NewSimulateSink creates a SimulateSink. A nil logger means slog.Default().
func NewSimulateSink(logger *slog.Logger) *SimulateSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulateSink{logger: logger}
}

// Emit logs the resource and discards it.
func (s *SimulateSink) Emit(_ context.Context, path string, content []byte) error {
	s.count.Add(1)
	s.bytes.Add(int64(len(content)))
	s.logger.Info("simulate save", "path", path, "bytes", len(content))
	return nil
}

// Count returns the number of discarded resources.
func (s *SimulateSink) Count() int64 {
	return s.count.Load()
}

// Bytes returns the total size of discarded resources.
func (s *SimulateSink) Bytes() int64 {
	return s.bytes.Load()
}

package sink

import (
	"context"

	"github.com/nao1215/onepage/internal/crawler"
)

type multi []crawler.Sink

// Multi returns a sink passing every emission to each of sinks in order.
// It stops at the first sink that fails and returns that error, so a sink
// only sees emissions every earlier sink accepted. Nil sinks are ignored.
func Multi(sinks ...crawler.Sink) crawler.Sink {
	m := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Emit(ctx context.Context, path string, content []byte) error {
	for _, s := range m {
		if err := s.Emit(ctx, path, content); err != nil {
			return err
		}
	}
	return nil
}

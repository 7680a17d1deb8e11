package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/nao1215/onepage/internal/crawler"
	"github.com/nao1215/onepage/internal/model"
)

// Inspector looks for privacy-relevant metadata in a mirrored file.
// It is called for every emission and ignores files it cannot inspect.
type Inspector interface {
	Inspect(path string, content []byte) []model.Finding
}

// Recorder fills a model.MirrorReport from a running crawl.
//
// Use it as a sink (Emit), as the spider's failure handler (RecordFailure)
// and as its stats handler (RecordStats).
type Recorder struct {
	mu        sync.Mutex
	report    *model.MirrorReport
	inspector Inspector
}

// NewRecorder creates a Recorder writing into report.
// A nil inspector disables metadata inspection.
func NewRecorder(report *model.MirrorReport, inspector Inspector) *Recorder {
	return &Recorder{report: report, inspector: inspector}
}

// Emit records the resource and inspects its content.
func (r *Recorder) Emit(_ context.Context, path string, content []byte) error {
	res := model.NewResource(path, content)

	var findings []model.Finding
	if r.inspector != nil {
		findings = r.inspector.Inspect(path, content)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.report.AddResource(res)
	for _, f := range findings {
		r.report.AddFinding(f)
	}
	return nil
}

// RecordFailure records a failed asset. It satisfies crawler.FailureHandler.
func (r *Recorder) RecordFailure(f crawler.Failure) {
	failure := model.Failure{
		Reference: f.Reference,
		URL:       f.URL,
		Path:      f.Path,
		Source:    f.Kind.String(),
	}
	if f.Err != nil {
		failure.Error = f.Err.Error()
	}
	var statusErr *crawler.HTTPStatusError
	if errors.As(f.Err, &statusErr) {
		failure.StatusCode = statusErr.StatusCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.AddFailure(failure)
}

// RecordStats stores the crawl statistics.
func (r *Recorder) RecordStats(stats crawler.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Skipped = stats.Skipped
}

// Report returns the report being filled.
// It must not be read while the crawl is running.
func (r *Recorder) Report() *model.MirrorReport {
	return r.report
}

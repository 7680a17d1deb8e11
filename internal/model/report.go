package model

import (
	"cmp"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
)

// MirrorReport is the result of mirroring one root URL.
//
// A MirrorReport is not safe for concurrent use; the sink that fills it
// serializes access.
type MirrorReport struct {
	// ID uniquely identifies the run. It is the primary key in the history database.
	ID string `json:"id"`

	// RootURL is the URL as given on the command line.
	RootURL string `json:"root_url"`

	// Host is the host (with a non-default port) of RootURL.
	Host string `json:"host"`

	// OutDir is where the files were written. Empty in simulate mode.
	OutDir string `json:"out_dir,omitempty"`

	// Simulated is true when nothing was written to disk.
	Simulated bool `json:"simulated"`

	// Rendered is true when the root document came from a headless browser.
	Rendered bool `json:"rendered"`

	// Options records which asset kinds were enabled.
	Options MirrorOptions `json:"options"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Resources holds one entry per distinct emitted path.
	Resources []Resource `json:"resources"`

	// Failures holds assets that could not be fetched or written.
	Failures []Failure `json:"failures,omitempty"`

	// Findings holds privacy-relevant metadata found in mirrored files.
	Findings []Finding `json:"findings,omitempty"`

	// Skipped counts references that were deliberately not fetched
	// (empty, inline, cross-origin, duplicates).
	Skipped int64 `json:"skipped"`

	// Error is set when the whole run failed, e.g. the root could not be fetched.
	Error string `json:"error,omitempty"`
}

// MirrorOptions records the asset switches of a run.
type MirrorOptions struct {
	JS     bool `json:"js"`
	CSS    bool `json:"css"`
	Images bool `json:"images"`
	Dedupe bool `json:"dedupe"`
}

// Failure is one asset that could not be mirrored.
type Failure struct {
	// Reference is the raw string found in HTML or CSS.
	Reference string `json:"reference"`

	// URL is the resolved URL, if resolution succeeded.
	URL string `json:"url,omitempty"`

	// Path is the relative path the asset would have been written to.
	Path string `json:"path,omitempty"`

	// Source is where the reference was found (stylesheet, script, image, nested).
	Source string `json:"source"`

	// StatusCode is the HTTP status for status failures, 0 otherwise.
	StatusCode int `json:"status_code,omitempty"`

	// Error is the error message.
	Error string `json:"error"`
}

// NewMirrorReport creates a report for rootURL with a fresh ID.
func NewMirrorReport(rootURL string) *MirrorReport {
	r := &MirrorReport{
		ID:        uuid.NewString(),
		RootURL:   rootURL,
		StartedAt: time.Now(),
	}
	if u, err := url.Parse(rootURL); err == nil {
		r.Host = u.Host
	}
	return r
}

// AddResource records an emitted file. A second emission of the same path
// replaces size and hash and increments Emissions.
func (r *MirrorReport) AddResource(res Resource) {
	for i := range r.Resources {
		if r.Resources[i].Path == res.Path {
			emissions := r.Resources[i].Emissions + res.Emissions
			r.Resources[i] = res
			r.Resources[i].Emissions = emissions
			return
		}
	}
	r.Resources = append(r.Resources, res)
}

// AddFailure records a failed asset.
func (r *MirrorReport) AddFailure(f Failure) {
	r.Failures = append(r.Failures, f)
}

// AddFinding records a finding, ignoring exact duplicates.
func (r *MirrorReport) AddFinding(f Finding) {
	for _, existing := range r.Findings {
		if existing.Type == f.Type && existing.Value == f.Value && existing.Location == f.Location {
			return
		}
	}
	r.Findings = append(r.Findings, f)
}

// Finish stamps the end time and sorts resources, failures and findings
// into a stable order for output.
func (r *MirrorReport) Finish() {
	r.FinishedAt = time.Now()

	slices.SortFunc(r.Resources, func(a, b Resource) int {
		// index.html first, then by path
		if a.Kind == KindDocument && b.Kind != KindDocument {
			return -1
		}
		if b.Kind == KindDocument && a.Kind != KindDocument {
			return 1
		}
		return cmp.Compare(a.Path, b.Path)
	})
	slices.SortFunc(r.Failures, func(a, b Failure) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Reference, b.Reference))
	})
	slices.SortStableFunc(r.Findings, func(a, b Finding) int {
		return cmp.Or(cmp.Compare(b.Severity, a.Severity), cmp.Compare(a.Location, b.Location))
	})
}

// Duration returns the wall time of the run.
func (r *MirrorReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TotalBytes returns the sum of all resource sizes.
func (r *MirrorReport) TotalBytes() int64 {
	var n int64
	for _, res := range r.Resources {
		n += res.Size
	}
	return n
}

// CountByKind returns the number of resources per kind.
func (r *MirrorReport) CountByKind() map[ResourceKind]int {
	counts := make(map[ResourceKind]int)
	for _, res := range r.Resources {
		counts[res.Kind]++
	}
	return counts
}

// Succeeded reports whether the root document was mirrored.
func (r *MirrorReport) Succeeded() bool {
	return r.Error == ""
}

// HasFailures reports whether any asset failed.
func (r *MirrorReport) HasFailures() bool {
	return len(r.Failures) > 0
}

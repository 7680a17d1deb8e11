package model

import (
	"cmp"
	"slices"
	"time"
)

// RunSummary describes a stored mirror run without its resources.
type RunSummary struct {
	ID            string    `json:"id"`
	RootURL       string    `json:"root_url"`
	Host          string    `json:"host"`
	StartedAt     time.Time `json:"started_at"`
	ResourceCount int       `json:"resource_count"`
	FailureCount  int       `json:"failure_count"`
	TotalBytes    int64     `json:"total_bytes"`
}

// Summarize returns the summary of r.
func (r *MirrorReport) Summarize() RunSummary {
	return RunSummary{
		ID:            r.ID,
		RootURL:       r.RootURL,
		Host:          r.Host,
		StartedAt:     r.StartedAt,
		ResourceCount: len(r.Resources),
		FailureCount:  len(r.Failures),
		TotalBytes:    r.TotalBytes(),
	}
}

// ResourceChange is a path present in both runs with different content.
type ResourceChange struct {
	Path      string       `json:"path"`
	Kind      ResourceKind `json:"kind"`
	OldSize   int64        `json:"old_size"`
	NewSize   int64        `json:"new_size"`
	OldSHA256 string       `json:"old_sha256"`
	NewSHA256 string       `json:"new_sha256"`
}

// MirrorDiff compares two runs of the same root URL.
type MirrorDiff struct {
	RootURL  string     `json:"root_url"`
	Previous RunSummary `json:"previous"`
	Current  RunSummary `json:"current"`

	// Added holds paths only in the current run.
	Added []Resource `json:"added,omitempty"`

	// Removed holds paths only in the previous run.
	Removed []Resource `json:"removed,omitempty"`

	// Changed holds paths whose hash differs.
	Changed []ResourceChange `json:"changed,omitempty"`

	// UnchangedCount is the number of paths with identical content.
	UnchangedCount int `json:"unchanged_count"`
}

// NewMirrorDiff compares the resources of two runs by path and hash.
// All lists are sorted by path.
func NewMirrorDiff(previous, current RunSummary, previousResources, currentResources []Resource) *MirrorDiff {
	d := &MirrorDiff{
		RootURL:  current.RootURL,
		Previous: previous,
		Current:  current,
	}

	before := make(map[string]Resource, len(previousResources))
	for _, res := range previousResources {
		before[res.Path] = res
	}

	seen := make(map[string]bool, len(currentResources))
	for _, res := range currentResources {
		seen[res.Path] = true
		old, ok := before[res.Path]
		switch {
		case !ok:
			d.Added = append(d.Added, res)
		case old.SHA256 != res.SHA256:
			d.Changed = append(d.Changed, ResourceChange{
				Path:      res.Path,
				Kind:      res.Kind,
				OldSize:   old.Size,
				NewSize:   res.Size,
				OldSHA256: old.SHA256,
				NewSHA256: res.SHA256,
			})
		default:
			d.UnchangedCount++
		}
	}
	for _, res := range previousResources {
		if !seen[res.Path] {
			d.Removed = append(d.Removed, res)
		}
	}

	byPath := func(a, b Resource) int { return cmp.Compare(a.Path, b.Path) }
	slices.SortFunc(d.Added, byPath)
	slices.SortFunc(d.Removed, byPath)
	slices.SortFunc(d.Changed, func(a, b ResourceChange) int { return cmp.Compare(a.Path, b.Path) })
	return d
}

// HasChanges reports whether anything was added, removed or changed.
func (d *MirrorDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// SizeDelta returns the change in total size between the runs.
func (d *MirrorDiff) SizeDelta() int64 {
	return d.Current.TotalBytes - d.Previous.TotalBytes
}

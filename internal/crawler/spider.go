package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Sink receives every fetched resource under its site-relative path.
//
// Emit is called concurrently from many goroutines and must be safe for
// that. The root document is always the first call. A returned error is
// reported to the FailureHandler and never stops the crawl.
type Sink interface {
	Emit(ctx context.Context, path string, content []byte) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, path string, content []byte) error

// Emit calls f(ctx, path, content).
func (f SinkFunc) Emit(ctx context.Context, path string, content []byte) error {
	return f(ctx, path, content)
}

// Failure describes a resource that could not be mirrored.
type Failure struct {
	// Reference is the raw reference string as found in HTML or CSS.
	Reference string

	// URL is the resolved URL, empty if resolution failed.
	URL string

	// Path is the relative path the resource would have been emitted under.
	Path string

	// Kind is where the reference was found.
	Kind Kind

	// Err is the cause: *NetworkError, *HTTPStatusError, ErrInvalidReference,
	// ErrBodyTooLarge, or an error returned by the sink.
	Err error
}

// FailureHandler is called once per failed resource. It must be safe for concurrent use.
type FailureHandler func(Failure)

// Stats summarizes one crawl.
type Stats struct {
	// Emitted is the number of resources handed to the sink, including the root.
	Emitted int64

	// Failed is the number of failed resources.
	Failed int64

	// Skipped is the number of empty, inline, cross-origin or duplicate references.
	Skipped int64

	// Elapsed is the wall time of the crawl.
	Elapsed time.Duration
}

// Spider mirrors one page and its same-origin assets.
// A Spider holds no per-crawl state and may run several crawls at once.
type Spider struct {
	// fetcher fetches every resource below the root.
	fetcher Fetcher

	// rootFetcher fetches the root document. Defaults to fetcher.
	rootFetcher Fetcher

	logger *slog.Logger

	// concurrency caps in-flight fetches per crawl. 0 means unbounded.
	concurrency int64

	// dedupe enables the per-crawl visited set.
	dedupe bool

	onFailure FailureHandler
	onStats   func(Stats)
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithConcurrency caps the number of simultaneous fetches of one crawl.
// Zero or a negative value leaves the fan-out unbounded.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.concurrency = int64(n)
		} else {
			s.concurrency = 0
		}
	}
}

// WithDeduplication makes a crawl fetch each absolute URL at most once,
// even when it is referenced through several reference strings.
// It is off by default: every reference site is fetched and emitted.
func WithDeduplication(enabled bool) SpiderOption {
	return func(s *Spider) {
		s.dedupe = enabled
	}
}

// WithRootFetcher sets a separate Fetcher for the root document, for
// example a headless browser that returns the rendered DOM.
func WithRootFetcher(f Fetcher) SpiderOption {
	return func(s *Spider) {
		s.rootFetcher = f
	}
}

// WithFailureHandler registers a handler for failed resources.
func WithFailureHandler(h FailureHandler) SpiderOption {
	return func(s *Spider) {
		s.onFailure = h
	}
}

// WithStatsHandler registers a callback receiving the Stats of every completed crawl.
func WithStatsHandler(h func(Stats)) SpiderOption {
	return func(s *Spider) {
		s.onStats = h
	}
}

// NewSpider creates a Spider fetching resources with fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher: fetcher,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rootFetcher == nil {
		s.rootFetcher = s.fetcher
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Crawl mirrors rootURL into sink.
//
// The root document is emitted as "index.html" before anything else. Crawl
// returns after every fetch it started has settled. It fails only with
// ErrInvalidRootURL or ErrRootFetchFailed (or ErrNoSink); failures of
// individual assets go to the FailureHandler.
func (s *Spider) Crawl(ctx context.Context, rootURL string, opts Options, sink Sink) error {
	if sink == nil {
		return ErrNoSink
	}

	root, err := url.Parse(strings.TrimSpace(rootURL))
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidRootURL, rootURL, err)
	}
	if !root.IsAbs() || root.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidRootURL, rootURL)
	}

	c := &crawl{
		spider:  s,
		root:    root,
		sink:    sink,
		started: time.Now(),
	}
	if s.concurrency > 0 {
		c.sem = semaphore.NewWeighted(s.concurrency)
	}

	s.logger.Info("start crawling", "url", root.String())

	resp, err := s.rootFetcher.Fetch(ctx, root)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRootFetchFailed, root, err)
	}

	if err := sink.Emit(ctx, RootPath, resp.Body); err != nil {
		c.fail(Failure{Reference: rootURL, URL: root.String(), Path: RootPath, Kind: KindRoot, Err: err})
	} else {
		c.emitted.Add(1)
	}

	if opts.IncludesAny() {
		c.crawlDocument(ctx, resp, opts)
	}

	stats := c.stats()
	s.logger.Info("finished crawling",
		"url", root.String(),
		"emitted", stats.Emitted,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"elapsed", stats.Elapsed,
	)
	if s.onStats != nil {
		s.onStats(stats)
	}
	return nil
}

// crawl is the state of a single Crawl call.
type crawl struct {
	spider *Spider
	root   *url.URL
	sink   Sink
	sem    *semaphore.Weighted

	visited sync.Map

	started time.Time
	emitted atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
}

// crawlDocument fans out over the assets of the root document.
func (c *crawl) crawlDocument(ctx context.Context, resp *Response, opts Options) {
	r, err := charset.NewReader(bytes.NewReader(resp.Body), resp.ContentType)
	if err != nil {
		c.spider.logger.Warn("unknown document encoding, assuming UTF-8",
			"url", c.root.String(),
			"contentType", resp.ContentType,
			"error", err,
		)
		r = bytes.NewReader(resp.Body)
	}

	parser, err := ParseHTML(r)
	if err != nil {
		c.spider.logger.Warn("failed to parse root document", "url", c.root.String(), "error", err)
		return
	}

	var g errgroup.Group
	for asset := range parser.Assets(opts) {
		g.Go(func() error {
			c.visit(ctx, c.root, asset.Reference, asset.Kind, nil)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // visit never returns an error
}

// crawlStylesheet fans out over the references of one stylesheet.
// References resolve against the stylesheet's own URL. chain holds the keys
// of the stylesheets that led here, base included.
func (c *crawl) crawlStylesheet(ctx context.Context, base *url.URL, css []byte, chain []string) {
	var g errgroup.Group
	for ref := range ExtractCSSRefs(css) {
		g.Go(func() error {
			c.visit(ctx, base, ref, KindNested, chain)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // visit never returns an error
}

// visit resolves, fetches and emits one reference, then recurses into it
// when it is a stylesheet. A reference to a stylesheet already on chain is
// an import cycle and is skipped, so recursion ends without deduplication.
func (c *crawl) visit(ctx context.Context, base *url.URL, ref string, kind Kind, chain []string) {
	logger := c.spider.logger

	if strings.TrimSpace(ref) == "" {
		c.skip("empty reference", ref, kind)
		return
	}

	u, err := Resolve(base, ref)
	if err != nil {
		c.fail(Failure{Reference: ref, Kind: kind, Err: err})
		return
	}
	if strings.HasPrefix(ref, "data:") || u.Scheme == "data" {
		c.skip("inline reference", ref, kind)
		return
	}
	if !SameOrigin(u, c.root) {
		c.skip("cross-origin reference", u.String(), kind)
		return
	}

	// A path without a file name cannot be written next to its siblings
	// (it would collide with a directory), so it is reported, not fetched.
	rel := RelativePath(u)
	if rel == "" || strings.HasSuffix(rel, "/") {
		c.fail(Failure{
			Reference: ref,
			URL:       u.String(),
			Kind:      kind,
			Err:       fmt.Errorf("%w: %s has no file name", ErrInvalidReference, u),
		})
		return
	}

	key := visitKey(u)
	if slices.Contains(chain, key) {
		c.skip("import cycle", u.String(), kind)
		return
	}

	if c.spider.dedupe && !c.markVisited(key) {
		c.skip("already fetched", u.String(), kind)
		return
	}

	logger.Debug("fetching", "url", u.String(), "kind", kind.String())
	resp, err := c.fetch(ctx, u)
	if err != nil {
		c.fail(Failure{Reference: ref, URL: u.String(), Path: rel, Kind: kind, Err: err})
		return
	}
	logger.Debug("fetched", "url", u.String(), "bytes", len(resp.Body))

	if err := c.sink.Emit(ctx, rel, resp.Body); err != nil {
		c.fail(Failure{Reference: ref, URL: u.String(), Path: rel, Kind: kind, Err: err})
	} else {
		c.emitted.Add(1)
	}

	if kind == KindStylesheet || (kind == KindNested && resp.IsStylesheet()) {
		c.crawlStylesheet(ctx, u, resp.Body, append(slices.Clip(chain), key))
	}
}

// fetch performs a fetch under the crawl's concurrency limit.
func (c *crawl) fetch(ctx context.Context, u *url.URL) (*Response, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, &NetworkError{URL: u.String(), Err: err}
		}
		defer c.sem.Release(1)
	}
	return c.spider.fetcher.Fetch(ctx, u)
}

// visitKey identifies the resource at u: the URL without its fragment.
func visitKey(u *url.URL) string {
	key := *u
	key.Fragment = ""
	key.RawFragment = ""
	return key.String()
}

// markVisited records key and reports whether it was new.
func (c *crawl) markVisited(key string) bool {
	_, loaded := c.visited.LoadOrStore(key, struct{}{})
	return !loaded
}

func (c *crawl) skip(reason, ref string, kind Kind) {
	c.skipped.Add(1)
	c.spider.logger.Debug("skip", "reason", reason, "reference", ref, "kind", kind.String())
}

func (c *crawl) fail(f Failure) {
	c.failed.Add(1)

	level := slog.LevelWarn
	var statusErr *HTTPStatusError
	if errors.As(f.Err, &statusErr) && statusErr.StatusCode == 404 {
		level = slog.LevelInfo
	}
	c.spider.logger.Log(context.Background(), level, "failed to mirror resource",
		"reference", f.Reference,
		"url", f.URL,
		"kind", f.Kind.String(),
		"error", f.Err,
	)

	if c.spider.onFailure != nil {
		c.spider.onFailure(f)
	}
}

func (c *crawl) stats() Stats {
	return Stats{
		Emitted: c.emitted.Load(),
		Failed:  c.failed.Load(),
		Skipped: c.skipped.Load(),
		Elapsed: time.Since(c.started),
	}
}

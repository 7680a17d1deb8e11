package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/onepage/internal/config"
	"github.com/nao1215/onepage/internal/crawler"
	"github.com/nao1215/onepage/internal/database"
	"github.com/nao1215/onepage/internal/model"
	"github.com/nao1215/onepage/internal/render"
	"github.com/nao1215/onepage/internal/sink"
	"github.com/nao1215/onepage/internal/tor"
)

// ErrOnionWithoutProxy is returned for .onion targets when no SOCKS5
// proxy is configured. Resolving them directly would leak the lookup to
// the local DNS resolver.
var ErrOnionWithoutProxy = errors.New(".onion targets require --tor or --proxy")

// TargetCheckStep validates the root URL before anything is fetched.
type TargetCheckStep struct {
	// proxied is true when requests go through SOCKS5.
	proxied bool
}

// NewTargetCheckStep creates a target check. proxied reports whether
// requests are routed through a SOCKS5 proxy.
func NewTargetCheckStep(proxied bool) *TargetCheckStep {
	return &TargetCheckStep{proxied: proxied}
}

// Name returns the step name.
func (s *TargetCheckStep) Name() string {
	return "target_check"
}

// Do checks that the root URL is an absolute http(s) URL and that .onion
// hosts are well-formed v3 addresses reachable through the proxy.
func (s *TargetCheckStep) Do(_ context.Context, report *model.MirrorReport) error {
	u, err := url.Parse(strings.TrimSpace(report.RootURL))
	if err != nil {
		return fmt.Errorf("%w: %w", crawler.ErrInvalidRootURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", crawler.ErrInvalidRootURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", crawler.ErrInvalidRootURL)
	}

	if !tor.IsOnionHost(u.Hostname()) {
		return nil
	}
	if err := tor.ValidateOnionHost(u.Hostname()); err != nil {
		return err
	}
	if !s.proxied {
		return ErrOnionWithoutProxy
	}
	return nil
}

// MirrorStep crawls the root URL into the output sink and fills the report.
type MirrorStep struct {
	// fetcher fetches every asset.
	fetcher crawler.Fetcher

	// rootFetcher fetches the root document. Nil means fetcher.
	rootFetcher crawler.Fetcher

	// options selects the asset kinds.
	options crawler.Options

	// outDir is where files are written unless simulate is set.
	outDir string

	// simulate discards files instead of writing them.
	simulate bool

	// dedupe fetches each absolute URL at most once.
	dedupe bool

	// concurrency caps in-flight fetches. 0 means unbounded.
	concurrency int

	// inspector looks for metadata in mirrored files. Nil disables it.
	inspector sink.Inspector

	// logger for structured logging.
	logger *slog.Logger
}

// MirrorStepOption configures a MirrorStep.
type MirrorStepOption func(*MirrorStep)

// WithMirrorOutDir sets the output directory.
func WithMirrorOutDir(dir string) MirrorStepOption {
	return func(s *MirrorStep) {
		s.outDir = dir
	}
}

// WithMirrorSimulate discards files instead of writing them.
func WithMirrorSimulate(simulate bool) MirrorStepOption {
	return func(s *MirrorStep) {
		s.simulate = simulate
	}
}

// WithMirrorOptions selects the asset kinds to mirror.
func WithMirrorOptions(opts crawler.Options) MirrorStepOption {
	return func(s *MirrorStep) {
		s.options = opts
	}
}

// WithMirrorDedupe enables URL deduplication within the crawl.
func WithMirrorDedupe(dedupe bool) MirrorStepOption {
	return func(s *MirrorStep) {
		s.dedupe = dedupe
	}
}

// WithMirrorConcurrency caps simultaneous fetches.
func WithMirrorConcurrency(n int) MirrorStepOption {
	return func(s *MirrorStep) {
		s.concurrency = n
	}
}

// WithMirrorRootFetcher fetches the root document with f, e.g. a headless browser.
func WithMirrorRootFetcher(f crawler.Fetcher) MirrorStepOption {
	return func(s *MirrorStep) {
		s.rootFetcher = f
	}
}

// WithMirrorInspector sets the metadata inspector.
func WithMirrorInspector(i sink.Inspector) MirrorStepOption {
	return func(s *MirrorStep) {
		s.inspector = i
	}
}

// WithMirrorLogger sets a custom logger for the mirror step.
func WithMirrorLogger(logger *slog.Logger) MirrorStepOption {
	return func(s *MirrorStep) {
		s.logger = logger
	}
}

// NewMirrorStep creates a mirror step that fetches assets with fetcher.
func NewMirrorStep(fetcher crawler.Fetcher, opts ...MirrorStepOption) *MirrorStep {
	s := &MirrorStep{
		fetcher: fetcher,
		options: crawler.DefaultOptions(),
		outDir:  config.DefaultOutDir,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *MirrorStep) Name() string {
	return "mirror"
}

// Do executes the crawl. It fails only when the output directory cannot be
// created or the root document cannot be fetched.
func (s *MirrorStep) Do(ctx context.Context, report *model.MirrorReport) error {
	report.Options = model.MirrorOptions{
		JS:     !s.options.SkipJS,
		CSS:    !s.options.SkipCSS,
		Images: !s.options.SkipImages,
		Dedupe: s.dedupe,
	}
	report.Simulated = s.simulate
	report.Rendered = s.rootFetcher != nil

	var output crawler.Sink
	if s.simulate {
		output = sink.NewSimulateSink(s.logger)
	} else {
		fs, err := sink.NewFileSink(s.outDir, sink.WithFileLogger(s.logger))
		if err != nil {
			return err
		}
		report.OutDir = fs.Dir()
		output = fs
	}

	recorder := sink.NewRecorder(report, s.inspector)

	spiderOpts := []crawler.SpiderOption{
		crawler.WithLogger(s.logger),
		crawler.WithConcurrency(s.concurrency),
		crawler.WithDeduplication(s.dedupe),
		crawler.WithFailureHandler(recorder.RecordFailure),
		crawler.WithStatsHandler(recorder.RecordStats),
	}
	if s.rootFetcher != nil {
		spiderOpts = append(spiderOpts, crawler.WithRootFetcher(s.rootFetcher))
	}

	// The recorder only sees files the output accepted.
	err := crawler.NewSpider(s.fetcher, spiderOpts...).
		Crawl(ctx, report.RootURL, s.options, sink.Multi(output, recorder))
	report.Finish()
	return err
}

// SaveStep records the finished run in the history database.
type SaveStep struct {
	db     *database.MirrorDB
	logger *slog.Logger
}

// NewSaveStep creates a save step. A nil db makes the step a no-op.
func NewSaveStep(db *database.MirrorDB, logger *slog.Logger) *SaveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaveStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do saves the report. Failed runs are not saved so that history
// comparisons only see complete mirrors.
func (s *SaveStep) Do(ctx context.Context, report *model.MirrorReport) error {
	if s.db == nil {
		return nil
	}
	if !report.Succeeded() {
		s.logger.Debug("not saving failed run", "url", report.RootURL)
		return nil
	}

	if err := s.db.SaveRun(ctx, report); err != nil {
		return fmt.Errorf("failed to save mirror run: %w", err)
	}
	s.logger.Info("mirror run saved", "url", report.RootURL, "id", report.ID)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Options selects the asset kinds.
	Options crawler.Options

	// OutDir is where files are written.
	OutDir string

	// Simulate discards files instead of writing them.
	Simulate bool

	// Dedupe fetches each absolute URL at most once.
	Dedupe bool

	// Concurrency caps simultaneous fetches. 0 means unbounded.
	Concurrency int

	// Timeout bounds every HTTP request.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize limits a single resource.
	MaxBodySize int64

	// Cookie is a raw cookie string sent with every request.
	Cookie string

	// Headers are additional HTTP headers.
	Headers map[string]string

	// InsecureTLS disables certificate verification.
	InsecureTLS bool

	// Render fetches the root document through headless Chrome.
	Render bool

	// RenderTimeout bounds loading the root document in the browser.
	RenderTimeout time.Duration

	// ChromePath is the browser executable. Empty means auto-detect.
	ChromePath string

	// ProfileDir is the browser user data directory. Empty means a
	// temporary profile. Chrome locks it, so it must not be shared by
	// concurrent pipelines.
	ProfileDir string

	// DB records finished runs. Nil disables history.
	DB *database.MirrorDB

	// Inspector looks for metadata in mirrored files. Nil disables it.
	Inspector sink.Inspector
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineOptions selects the asset kinds to mirror.
func WithPipelineOptions(opts crawler.Options) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Options = opts
	}
}

// WithPipelineOutDir sets the output directory.
func WithPipelineOutDir(dir string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.OutDir = dir
	}
}

// WithPipelineSimulate discards files instead of writing them.
func WithPipelineSimulate(simulate bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Simulate = simulate
	}
}

// WithPipelineDedupe enables URL deduplication.
func WithPipelineDedupe(dedupe bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Dedupe = dedupe
	}
}

// WithPipelineConcurrency caps simultaneous fetches.
func WithPipelineConcurrency(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Concurrency = n
	}
}

// WithPipelineTimeout sets the per-request timeout.
func WithPipelineTimeout(d time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Timeout = d
	}
}

// WithPipelineUserAgent sets the User-Agent header for HTTP requests.
func WithPipelineUserAgent(userAgent string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.UserAgent = userAgent
	}
}

// WithPipelineMaxBodySize sets the maximum response body size in bytes.
func WithPipelineMaxBodySize(maxBodySize int64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxBodySize = maxBodySize
	}
}

// WithPipelineCookie sets the cookie for HTTP requests.
func WithPipelineCookie(cookie string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Cookie = cookie
	}
}

// WithPipelineHeaders sets additional HTTP headers.
func WithPipelineHeaders(headers map[string]string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Headers = headers
	}
}

// WithPipelineInsecureTLS disables certificate verification.
func WithPipelineInsecureTLS(insecure bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.InsecureTLS = insecure
	}
}

// WithPipelineRender fetches the root document through headless Chrome.
func WithPipelineRender(render bool, timeout time.Duration, chromePath string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Render = render
		c.RenderTimeout = timeout
		c.ChromePath = chromePath
	}
}

// WithPipelineBrowserProfile keeps the browser profile in dir.
func WithPipelineBrowserProfile(dir string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.ProfileDir = dir
	}
}

// WithPipelineDB records finished runs in db.
func WithPipelineDB(db *database.MirrorDB) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DB = db
	}
}

// WithPipelineInspector sets the metadata inspector.
func WithPipelineInspector(i sink.Inspector) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Inspector = i
	}
}

// DefaultPipeline creates a pipeline with the target check, mirror and
// save steps.
//
// A nil client sends requests directly; otherwise every request, including
// the headless browser's, goes through the client's SOCKS5 proxy.
func DefaultPipeline(client *tor.Client, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		Options:       crawler.DefaultOptions(),
		OutDir:        config.DefaultOutDir,
		Timeout:       config.DefaultTimeout,
		UserAgent:     config.DefaultUserAgent,
		MaxBodySize:   config.DefaultMaxBodySize,
		RenderTimeout: config.DefaultRenderTimeout,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	httpOpts := []tor.HTTPOption{tor.WithInsecureTLS(cfg.InsecureTLS)}
	if cfg.Cookie != "" || len(cfg.Headers) > 0 {
		httpOpts = append(httpOpts, tor.WithSiteHeaders(cfg.Cookie, cfg.Headers))
	}

	var httpClient *http.Client
	if client != nil {
		httpClient = client.NewHTTPClient(httpOpts...)
	} else {
		httpClient = tor.NewDirectHTTPClient(cfg.Timeout, httpOpts...)
	}

	fetcher := crawler.NewHTTPFetcher(httpClient,
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	)

	mirrorOpts := []MirrorStepOption{
		WithMirrorOptions(cfg.Options),
		WithMirrorOutDir(cfg.OutDir),
		WithMirrorSimulate(cfg.Simulate),
		WithMirrorDedupe(cfg.Dedupe),
		WithMirrorConcurrency(cfg.Concurrency),
		WithMirrorLogger(p.logger),
	}
	if cfg.Inspector != nil {
		mirrorOpts = append(mirrorOpts, WithMirrorInspector(cfg.Inspector))
	}
	if cfg.Render {
		mirrorOpts = append(mirrorOpts, WithMirrorRootFetcher(newRenderer(client, cfg, p.logger)))
	}

	p.AddSteps(
		NewTargetCheckStep(client != nil),
		NewMirrorStep(fetcher, mirrorOpts...),
	)
	if cfg.DB != nil {
		p.AddStep(NewSaveStep(cfg.DB, p.logger))
	}

	return p
}

// newRenderer creates the headless browser root fetcher.
func newRenderer(client *tor.Client, cfg *DefaultPipelineConfig, logger *slog.Logger) *render.Renderer {
	opts := []render.Option{
		render.WithLogger(logger),
		render.WithTimeout(cfg.RenderTimeout),
		render.WithUserAgent(cfg.UserAgent),
	}
	if cfg.ChromePath != "" {
		opts = append(opts, render.WithExecPath(cfg.ChromePath))
	}
	if cfg.ProfileDir != "" {
		opts = append(opts, render.WithProfileDir(cfg.ProfileDir))
	}
	if client != nil {
		opts = append(opts, render.WithSOCKS5Proxy(client.ProxyAddress()))
	}
	return render.NewRenderer(opts...)
}

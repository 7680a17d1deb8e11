package render

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/nao1215/onepage/internal/crawler"
)

// DefaultTimeout bounds one rendering, including browser startup.
const DefaultTimeout = 60 * time.Second

// htmlContentType is reported for every rendered document; the DOM is
// serialized as UTF-8.
const htmlContentType = "text/html; charset=utf-8"

// Renderer fetches a URL in headless Chrome and returns the DOM.
// Each Fetch starts its own browser, so a Renderer is safe for concurrent use.
type Renderer struct {
	logger      *slog.Logger
	timeout     time.Duration
	settle      time.Duration
	userAgent   string
	execPath    string
	proxyServer string
	profileDir  string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// WithTimeout bounds a single Fetch. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithSettle waits d after the page is ready before serializing it,
// for scripts that keep changing the DOM after load.
func WithSettle(d time.Duration) Option {
	return func(r *Renderer) {
		r.settle = d
	}
}

// WithUserAgent overrides the browser's User-Agent.
func WithUserAgent(ua string) Option {
	return func(r *Renderer) {
		r.userAgent = ua
	}
}

// WithExecPath sets the Chrome binary. Empty means chromedp's lookup.
func WithExecPath(path string) Option {
	return func(r *Renderer) {
		r.execPath = path
	}
}

// WithSOCKS5Proxy routes the browser through a SOCKS5 proxy at addr (host:port).
func WithSOCKS5Proxy(addr string) Option {
	return func(r *Renderer) {
		if addr != "" {
			r.proxyServer = "socks5://" + addr
		}
	}
}

// WithProfileDir sets the Chrome user data directory.
// Empty means a temporary profile per run.
func WithProfileDir(dir string) Option {
	return func(r *Renderer) {
		r.profileDir = dir
	}
}

// NewRenderer creates a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// allocatorOptions returns the Chrome flags for this renderer.
func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if r.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.userAgent))
	}
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}
	if r.proxyServer != "" {
		opts = append(opts,
			chromedp.ProxyServer(r.proxyServer),
			// no local DNS lookups; the proxy resolves host names
			chromedp.Flag("host-resolver-rules", "MAP * ~NOTFOUND , EXCLUDE localhost"),
		)
	}
	if r.profileDir != "" {
		opts = append(opts, chromedp.UserDataDir(r.profileDir))
	}
	return opts
}

// Fetch loads u in headless Chrome and returns the serialized document.
// Chrome does not expose the HTTP status here, so error pages are
// returned like any other document.
func (r *Renderer) Fetch(ctx context.Context, u *url.URL) (*crawler.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	start := time.Now()
	r.logger.Debug("rendering", "url", u.String())

	var document, location string
	actions := []chromedp.Action{
		chromedp.Navigate(u.String()),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if r.settle > 0 {
		actions = append(actions, chromedp.Sleep(r.settle))
	}
	actions = append(actions,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &document, chromedp.ByQuery),
	)

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, &crawler.NetworkError{URL: u.String(), Err: fmt.Errorf("render: %w", err)}
	}

	final := u
	if parsed, err := url.Parse(location); err == nil && parsed.Host != "" {
		final = parsed
	}

	r.logger.Debug("rendered", "url", u.String(), "bytes", len(document), "elapsed", time.Since(start))

	return &crawler.Response{
		URL:         u,
		FinalURL:    final,
		ContentType: htmlContentType,
		Body:        []byte("<!DOCTYPE html>\n" + document),
	}, nil
}

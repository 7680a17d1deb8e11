package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testFile is one resource served by a testSite.
type testFile struct {
	contentType string
	body        string
	status      int
}

// testSite serves a fixed set of files and counts requests per path.
type testSite struct {
	mu    sync.Mutex
	hits  map[string]int
	files map[string]testFile
}

func newTestSite(t *testing.T, files map[string]testFile) (*httptest.Server, *testSite) {
	t.Helper()

	site := &testSite{hits: make(map[string]int), files: files}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.hits[r.URL.Path]++
		site.mu.Unlock()

		f, ok := site.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if f.contentType != "" {
			w.Header().Set("Content-Type", f.contentType)
		}
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		_, _ = w.Write([]byte(f.body)) //nolint:errcheck
	}))
	t.Cleanup(server.Close)
	return server, site
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) totalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.hits {
		n += c
	}
	return n
}

type emission struct {
	path    string
	content string
}

// recordingSink records every emission in call order.
type recordingSink struct {
	mu    sync.Mutex
	calls []emission
	errOn map[string]error
}

func (r *recordingSink) Emit(_ context.Context, path string, content []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, emission{path: path, content: string(content)})
	return r.errOn[path]
}

func (r *recordingSink) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.path)
	}
	return out
}

func (r *recordingSink) content(path string) (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var body string
	n := 0
	for _, c := range r.calls {
		if c.path == path {
			body = c.content
			n++
		}
	}
	return body, n
}

// failureLog collects failures reported by a Spider.
type failureLog struct {
	mu       sync.Mutex
	failures []Failure
}

func (l *failureLog) handle(f Failure) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, f)
}

func (l *failureLog) all() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.failures)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSpider(server *httptest.Server, opts ...SpiderOption) *Spider {
	opts = append([]SpiderOption{WithLogger(quietLogger())}, opts...)
	return NewSpider(NewHTTPFetcher(server.Client()), opts...)
}

func sortedPaths(sink *recordingSink) []string {
	paths := sink.paths()
	slices.Sort(paths)
	return paths
}

// TestSpiderCrawl tests the complete mirroring flow.
func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	t.Run("mirrors page with nested stylesheets", func(t *testing.T) {
		t.Parallel()

		files := map[string]testFile{
			"/": {contentType: "text/html", body: `<html><head><link rel="stylesheet" href="style.css"></head>` +
				`<body><img src="pic.png"></body></html>`},
			"/pic.png":   {contentType: "image/png", body: "PNG-pic"},
			"/style.css": {contentType: "text/css", body: `@import url("base.css"); body{background:url(bg.png)}`},
			"/base.css":  {contentType: "text/css", body: `h1{color:blue}`},
			"/bg.png":    {contentType: "image/png", body: "PNG-bg"},
		}
		server, _ := newTestSite(t, files)

		sink := &recordingSink{}
		if err := newTestSpider(server).Crawl(context.Background(), server.URL+"/", DefaultOptions(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		paths := sink.paths()
		if len(paths) == 0 || paths[0] != RootPath {
			t.Fatalf("expected %s first, got %v", RootPath, paths)
		}

		want := []string{"base.css", "bg.png", "index.html", "pic.png", "style.css"}
		if got := sortedPaths(sink); !slices.Equal(got, want) {
			t.Fatalf("expected paths %v, got %v", want, got)
		}

		for path, f := range map[string]testFile{
			"index.html": files["/"],
			"pic.png":    files["/pic.png"],
			"style.css":  files["/style.css"],
			"base.css":   files["/base.css"],
			"bg.png":     files["/bg.png"],
		} {
			body, n := sink.content(path)
			if n != 1 {
				t.Errorf("%s: expected 1 emission, got %d", path, n)
			}
			if body != f.body {
				t.Errorf("%s: expected %q, got %q", path, f.body, body)
			}
		}
	})

	t.Run("resolves css references against the stylesheet", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, map[string]testFile{
			"/a/index.html":     {contentType: "text/html", body: `<link rel="stylesheet" href="b/s.css">`},
			"/a/b/s.css":        {contentType: "text/css", body: `div{background:url(img/i.png)}`},
			"/a/b/img/i.png":    {contentType: "image/png", body: "nested"},
			"/img/i.png":        {contentType: "image/png", body: "wrong"},
			"/a/img/i.png":      {contentType: "image/png", body: "wrong"},
			"/a/b/unused.png":   {contentType: "image/png", body: "unused"},
			"/a/b/img/other.js": {contentType: "text/javascript", body: "unused"},
		})

		sink := &recordingSink{}
		if err := newTestSpider(server).Crawl(context.Background(), server.URL+"/a/index.html", DefaultOptions(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if body, n := sink.content("a/b/img/i.png"); n != 1 || body != "nested" {
			t.Errorf("expected a/b/img/i.png with nested content, got %d emissions of %q", n, body)
		}
		if site.hitCount("/img/i.png") != 0 || site.hitCount("/a/img/i.png") != 0 {
			t.Error("image was resolved against the wrong base")
		}
	})

	t.Run("strips query and fragment from css references", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, map[string]testFile{
			"/":          {contentType: "text/html", body: `<link rel="stylesheet" href="s.css">`},
			"/s.css":     {contentType: "text/css", body: `a{background:url(img/i.png?v=2#frag)}`},
			"/img/i.png": {contentType: "image/png", body: "img"},
		})

		sink := &recordingSink{}
		if err := newTestSpider(server).Crawl(context.Background(), server.URL, DefaultOptions(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, n := sink.content("img/i.png"); n != 1 {
			t.Errorf("expected img/i.png to be emitted once, got %d", n)
		}
		if site.hitCount("/img/i.png") != 1 {
			t.Errorf("expected one request for /img/i.png, got %d", site.hitCount("/img/i.png"))
		}
	})

	t.Run("skips inline and cross-origin references", func(t *testing.T) {
		t.Parallel()

		other, otherSite := newTestSite(t, map[string]testFile{
			"/x.js":  {contentType: "text/javascript", body: "x"},
			"/y.png": {contentType: "image/png", body: "y"},
			"/z.css": {contentType: "text/css", body: "z"},
		})

		server, _ := newTestSite(t, map[string]testFile{
			"/": {contentType: "text/html", body: fmt.Sprintf(`<html><head>
				<link rel="stylesheet" href="%[1]s/z.css">
				<script src="%[1]s/x.js"></script>
				<script>inline()</script>
			</head><body>
				<img src="data:image/png;base64,iVBORw0KGgo=">
				<img src="%[1]s/y.png">
				<img src="">
				<img src="local.png">
			</body></html>`, other.URL)},
			"/local.png": {contentType: "image/png", body: "local"},
		})

		failures := &failureLog{}
		sink := &recordingSink{}
		err := newTestSpider(server, WithFailureHandler(failures.handle)).
			Crawl(context.Background(), server.URL, DefaultOptions(), sink)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"index.html", "local.png"}
		if got := sortedPaths(sink); !slices.Equal(got, want) {
			t.Errorf("expected paths %v, got %v", want, got)
		}
		if n := otherSite.totalHits(); n != 0 {
			t.Errorf("expected no requests to the other origin, got %d", n)
		}
		if f := failures.all(); len(f) != 0 {
			t.Errorf("skips must not be reported as failures, got %v", f)
		}
	})

	t.Run("asset failures do not abort the crawl", func(t *testing.T) {
		t.Parallel()

		server, _ := newTestSite(t, map[string]testFile{
			"/":          {contentType: "text/html", body: `<img src="missing.png"><img src="error.png"><img src="ok.png">`},
			"/error.png": {status: http.StatusInternalServerError, body: "boom"},
			"/ok.png":    {contentType: "image/png", body: "ok"},
		})

		failures := &failureLog{}
		sink := &recordingSink{}
		err := newTestSpider(server, WithFailureHandler(failures.handle)).
			Crawl(context.Background(), server.URL, DefaultOptions(), sink)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"index.html", "ok.png"}
		if got := sortedPaths(sink); !slices.Equal(got, want) {
			t.Errorf("expected paths %v, got %v", want, got)
		}

		codes := map[string]int{}
		for _, f := range failures.all() {
			var statusErr *HTTPStatusError
			if !errors.As(f.Err, &statusErr) {
				t.Errorf("expected HTTPStatusError for %s, got %v", f.Reference, f.Err)
				continue
			}
			codes[f.Path] = statusErr.StatusCode
			if f.Kind != KindImage {
				t.Errorf("expected image kind, got %s", f.Kind)
			}
		}
		if codes["missing.png"] != http.StatusNotFound || codes["error.png"] != http.StatusInternalServerError {
			t.Errorf("unexpected failure status codes %v", codes)
		}
	})

	t.Run("root failure is fatal", func(t *testing.T) {
		t.Parallel()

		server, _ := newTestSite(t, map[string]testFile{
			"/pic.png": {contentType: "image/png", body: "pic"},
		})

		sink := &recordingSink{}
		err := newTestSpider(server).Crawl(context.Background(), server.URL+"/index.html", DefaultOptions(), sink)
		if !errors.Is(err, ErrRootFetchFailed) {
			t.Fatalf("expected ErrRootFetchFailed, got %v", err)
		}

		var statusErr *HTTPStatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected wrapped 404, got %v", err)
		}
		if paths := sink.paths(); len(paths) != 0 {
			t.Errorf("expected no sink calls, got %v", paths)
		}
	})

	t.Run("unreachable root is fatal", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		target := closed.URL
		closed.Close()

		err := NewSpider(NewHTTPFetcher(nil), WithLogger(quietLogger())).
			Crawl(context.Background(), target, DefaultOptions(), &recordingSink{})

		var netErr *NetworkError
		if !errors.Is(err, ErrRootFetchFailed) || !errors.As(err, &netErr) {
			t.Errorf("expected ErrRootFetchFailed wrapping NetworkError, got %v", err)
		}
	})

	t.Run("invalid root url", func(t *testing.T) {
		t.Parallel()

		var fetches atomic.Int32
		spider := NewSpider(FetcherFunc(func(_ context.Context, _ *url.URL) (*Response, error) {
			fetches.Add(1)
			return nil, errors.New("must not be called")
		}), WithLogger(quietLogger()))

		for _, root := range []string{"", "index.html", "/relative/path", "http://[::1", "http:///nohost"} {
			err := spider.Crawl(context.Background(), root, DefaultOptions(), &recordingSink{})
			if !errors.Is(err, ErrInvalidRootURL) {
				t.Errorf("Crawl(%q) error = %v, want ErrInvalidRootURL", root, err)
			}
		}
		if fetches.Load() != 0 {
			t.Errorf("expected no fetches, got %d", fetches.Load())
		}
	})

	t.Run("nil sink", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(NewHTTPFetcher(nil), WithLogger(quietLogger()))
		if err := spider.Crawl(context.Background(), "http://example.com/", DefaultOptions(), nil); !errors.Is(err, ErrNoSink) {
			t.Errorf("expected ErrNoSink, got %v", err)
		}
	})
}

// TestSpiderOptionsFilter tests that asset kinds can be switched off.
func TestSpiderOptionsFilter(t *testing.T) {
	t.Parallel()

	files := map[string]testFile{
		"/":        {contentType: "text/html", body: `<link rel="stylesheet" href="s.css"><script src="app.js"></script><img src="pic.png">`},
		"/s.css":   {contentType: "text/css", body: `a{background:url(bg.png)}`},
		"/bg.png":  {contentType: "image/png", body: "bg"},
		"/app.js":  {contentType: "text/javascript", body: "js"},
		"/pic.png": {contentType: "image/png", body: "pic"},
	}

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{name: "everything", opts: Options{}, want: []string{"app.js", "bg.png", "index.html", "pic.png", "s.css"}},
		{name: "no css", opts: Options{SkipCSS: true}, want: []string{"app.js", "index.html", "pic.png"}},
		{name: "no js", opts: Options{SkipJS: true}, want: []string{"bg.png", "index.html", "pic.png", "s.css"}},
		{name: "no images keeps css images", opts: Options{SkipImages: true}, want: []string{"app.js", "bg.png", "index.html", "s.css"}},
		{name: "root only", opts: Options{SkipCSS: true, SkipJS: true, SkipImages: true}, want: []string{"index.html"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, site := newTestSite(t, files)
			sink := &recordingSink{}
			if err := newTestSpider(server).Crawl(context.Background(), server.URL, tt.opts, sink); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := sortedPaths(sink); !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if paths := sink.paths(); paths[0] != RootPath {
				t.Errorf("expected root first, got %v", paths)
			}
			if site.totalHits() != len(tt.want) {
				t.Errorf("expected %d requests, got %d", len(tt.want), site.totalHits())
			}
		})
	}
}

// TestSpiderDeduplication tests the default and opt-in duplicate handling.
func TestSpiderDeduplication(t *testing.T) {
	t.Parallel()

	files := map[string]testFile{
		"/": {contentType: "text/html", body: `<img src="pic.png"><img src="pic.png"><img src="pic.png#a">` +
			`<link rel="stylesheet" href="s.css">`},
		"/s.css":   {contentType: "text/css", body: `a{background:url(pic.png)}`},
		"/pic.png": {contentType: "image/png", body: "pic"},
	}

	t.Run("every reference site is fetched by default", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, files)
		sink := &recordingSink{}
		if err := newTestSpider(server).Crawl(context.Background(), server.URL, DefaultOptions(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, n := sink.content("pic.png"); n != 4 {
			t.Errorf("expected 4 emissions of pic.png, got %d", n)
		}
		if site.hitCount("/pic.png") != 4 {
			t.Errorf("expected 4 requests for pic.png, got %d", site.hitCount("/pic.png"))
		}
	})

	t.Run("deduplication fetches each URL once", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, files)
		sink := &recordingSink{}
		spider := newTestSpider(server, WithDeduplication(true))
		if err := spider.Crawl(context.Background(), server.URL, DefaultOptions(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, n := sink.content("pic.png"); n != 1 {
			t.Errorf("expected 1 emission of pic.png, got %d", n)
		}
		if site.hitCount("/pic.png") != 1 {
			t.Errorf("expected 1 request for pic.png, got %d", site.hitCount("/pic.png"))
		}
	})

	t.Run("visited set is per crawl", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, files)
		spider := newTestSpider(server, WithDeduplication(true))
		for range 2 {
			if err := spider.Crawl(context.Background(), server.URL, DefaultOptions(), &recordingSink{}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if site.hitCount("/pic.png") != 2 {
			t.Errorf("expected 2 requests across two crawls, got %d", site.hitCount("/pic.png"))
		}
	})
}

// TestSpiderConcurrency tests the fetch limit.
func TestSpiderConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	slow := func(f *Response) FetcherFunc {
		return func(ctx context.Context, u *url.URL) (*Response, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			select {
			case <-time.After(20 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &Response{URL: u, FinalURL: u, ContentType: f.ContentType, Body: f.Body}, nil
		}
	}

	var body strings.Builder
	body.WriteString(`<link rel="stylesheet" href="s.css">`)
	for i := range 8 {
		fmt.Fprintf(&body, `<img src="img%d.png">`, i)
	}

	root := &Response{ContentType: "text/html", Body: []byte(body.String())}
	css := &Response{ContentType: "text/css", Body: []byte(`a{background:url(a.png)} b{background:url(b.png)}`)}
	png := &Response{ContentType: "image/png", Body: []byte("png")}

	fetcher := FetcherFunc(func(ctx context.Context, u *url.URL) (*Response, error) {
		if strings.HasSuffix(u.Path, ".css") {
			return slow(css)(ctx, u)
		}
		return slow(png)(ctx, u)
	})
	rootFetcher := FetcherFunc(func(_ context.Context, u *url.URL) (*Response, error) {
		return &Response{URL: u, FinalURL: u, ContentType: root.ContentType, Body: root.Body}, nil
	})

	sink := &recordingSink{}
	spider := NewSpider(fetcher,
		WithRootFetcher(rootFetcher),
		WithConcurrency(2),
		WithLogger(quietLogger()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := spider.Crawl(ctx, "http://example.com/", DefaultOptions(), sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(sink.paths()); n != 12 {
		t.Errorf("expected 12 emissions, got %d: %v", n, sink.paths())
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("expected at most 2 concurrent fetches, saw %d", p)
	}
}

// TestSpiderSinkErrors tests that a failing sink is reported and isolated.
func TestSpiderSinkErrors(t *testing.T) {
	t.Parallel()

	server, _ := newTestSite(t, map[string]testFile{
		"/":      {contentType: "text/html", body: `<link rel="stylesheet" href="s.css"><img src="a.png"><img src="b.png">`},
		"/s.css": {contentType: "text/css", body: `x{background:url(c.png)}`},
		"/a.png": {contentType: "image/png", body: "a"},
		"/b.png": {contentType: "image/png", body: "b"},
		"/c.png": {contentType: "image/png", body: "c"},
	})

	errDisk := errors.New("disk full")
	sink := &recordingSink{errOn: map[string]error{"a.png": errDisk, "s.css": errDisk}}
	failures := &failureLog{}

	err := newTestSpider(server, WithFailureHandler(failures.handle)).
		Crawl(context.Background(), server.URL, DefaultOptions(), sink)
	if err != nil {
		t.Fatalf("sink errors must not fail the crawl: %v", err)
	}

	// A stylesheet the sink rejected is still scanned.
	want := []string{"a.png", "b.png", "c.png", "index.html", "s.css"}
	if got := sortedPaths(sink); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	var failed []string
	for _, f := range failures.all() {
		if !errors.Is(f.Err, errDisk) {
			t.Errorf("unexpected failure %v", f.Err)
		}
		failed = append(failed, f.Path)
	}
	slices.Sort(failed)
	if !slices.Equal(failed, []string{"a.png", "s.css"}) {
		t.Errorf("expected failures for a.png and s.css, got %v", failed)
	}
}

// TestSpiderEdgeCases tests unusual documents and references.
func TestSpiderEdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("decodes legacy charset before parsing", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, map[string]testFile{
			"/":         {contentType: "text/html; charset=iso-8859-1", body: "<img src=\"caf\xe9.png\">"},
			"/café.png": {contentType: "image/png", body: "latte"},
		})

		sink := &recordingSink{}
		if err := newTestSpider(server).Crawl(context.Background(), server.URL, DefaultOptions(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body, n := sink.content("café.png"); n != 1 || body != "latte" {
			t.Errorf("expected café.png, got paths %v", sink.paths())
		}
		if site.hitCount("/café.png") != 1 {
			t.Error("expected one request for the decoded path")
		}
		// The root is emitted as served, not re-encoded.
		if body, _ := sink.content(RootPath); body != "<img src=\"caf\xe9.png\">" {
			t.Errorf("root body was modified: %q", body)
		}
	})

	t.Run("reference without file name is invalid", func(t *testing.T) {
		t.Parallel()

		server, _ := newTestSite(t, map[string]testFile{
			"/": {contentType: "text/html", body: `<img src="/"><script src="dir/"></script>`},
		})

		failures := &failureLog{}
		sink := &recordingSink{}
		err := newTestSpider(server, WithFailureHandler(failures.handle)).
			Crawl(context.Background(), server.URL, DefaultOptions(), sink)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := failures.all()
		if len(got) != 2 {
			t.Fatalf("expected 2 failures, got %v", got)
		}
		for _, f := range got {
			if !errors.Is(f.Err, ErrInvalidReference) {
				t.Errorf("expected ErrInvalidReference, got %v", f.Err)
			}
		}
		if paths := sink.paths(); !slices.Equal(paths, []string{RootPath}) {
			t.Errorf("expected only the root, got %v", paths)
		}
	})

	t.Run("nested non-css is not scanned", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, map[string]testFile{
			"/":         {contentType: "text/html", body: `<link rel="stylesheet" href="s.css">`},
			"/s.css":    {contentType: "text/css", body: `@font-face{src:url(font.svg)}`},
			"/font.svg": {contentType: "image/svg+xml", body: `<svg><image href="x" style="fill:url(hidden.png)"/></svg>`},
		})

		if err := newTestSpider(server).Crawl(context.Background(), server.URL, DefaultOptions(), &recordingSink{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.hitCount("/hidden.png") != 0 {
			t.Error("references inside a non-stylesheet must not be followed")
		}
	})

	t.Run("import cycle terminates with deduplication", func(t *testing.T) {
		t.Parallel()

		server, _ := newTestSite(t, map[string]testFile{
			"/":      {contentType: "text/html", body: `<link rel="stylesheet" href="a.css">`},
			"/a.css": {contentType: "text/css", body: `@import url(b.css);`},
			"/b.css": {contentType: "text/css", body: `@import url(a.css);`},
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sink := &recordingSink{}
		if err := newTestSpider(server, WithDeduplication(true)).Crawl(ctx, server.URL, DefaultOptions(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"a.css", "b.css", "index.html"}
		if got := sortedPaths(sink); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("self import terminates with default options", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, map[string]testFile{
			"/":      {contentType: "text/html", body: `<link rel="stylesheet" href="a.css">`},
			"/a.css": {contentType: "text/css", body: `@import url(a.css);`},
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sink := &recordingSink{}
		if err := newTestSpider(server).Crawl(ctx, server.URL, DefaultOptions(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ctx.Err() != nil {
			t.Fatal("crawl only ended because the context expired")
		}
		if got := site.hitCount("/a.css"); got != 1 {
			t.Errorf("expected a.css to be fetched once, got %d", got)
		}
		if want, got := []string{"a.css", "index.html"}, sortedPaths(sink); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("import cycle terminates with default options", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, map[string]testFile{
			"/":      {contentType: "text/html", body: `<link rel="stylesheet" href="a.css">`},
			"/a.css": {contentType: "text/css", body: `@import url(b.css);`},
			"/b.css": {contentType: "text/css", body: `@import url("a.css#top");`},
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := newTestSpider(server).Crawl(ctx, server.URL, DefaultOptions(), &recordingSink{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ctx.Err() != nil {
			t.Fatal("crawl only ended because the context expired")
		}
		if site.hitCount("/a.css") != 1 || site.hitCount("/b.css") != 1 {
			t.Errorf("expected one fetch each, got a.css=%d b.css=%d", site.hitCount("/a.css"), site.hitCount("/b.css"))
		}
	})

	t.Run("shared import is still fetched per branch", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, map[string]testFile{
			"/": {contentType: "text/html", body: `<link rel="stylesheet" href="a.css">` +
				`<link rel="stylesheet" href="b.css">`},
			"/a.css":    {contentType: "text/css", body: `@import url(base.css);`},
			"/b.css":    {contentType: "text/css", body: `@import url(base.css);`},
			"/base.css": {contentType: "text/css", body: `body{color:red}`},
		})

		sink := &recordingSink{}
		if err := newTestSpider(server).Crawl(context.Background(), server.URL, DefaultOptions(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := site.hitCount("/base.css"); got != 2 {
			t.Errorf("expected base.css to be fetched once per importer, got %d", got)
		}
		if _, n := sink.content("base.css"); n != 2 {
			t.Errorf("expected base.css to be emitted twice, got %d", n)
		}
	})

	t.Run("root fetcher override", func(t *testing.T) {
		t.Parallel()

		server, site := newTestSite(t, map[string]testFile{
			"/":          {contentType: "text/html", body: `<p>static</p>`},
			"/render.js": {contentType: "text/javascript", body: "js"},
		})

		rendered := FetcherFunc(func(_ context.Context, u *url.URL) (*Response, error) {
			return &Response{URL: u, FinalURL: u, ContentType: "text/html", Body: []byte(`<script src="render.js"></script>`)}, nil
		})

		sink := &recordingSink{}
		if err := newTestSpider(server, WithRootFetcher(rendered)).Crawl(context.Background(), server.URL, DefaultOptions(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, n := sink.content("render.js"); n != 1 {
			t.Errorf("expected render.js from the rendered document, got %v", sink.paths())
		}
		if site.hitCount("/") != 0 {
			t.Error("root must be fetched by the root fetcher only")
		}
	})

	t.Run("reports stats", func(t *testing.T) {
		t.Parallel()

		server, _ := newTestSite(t, map[string]testFile{
			"/":      {contentType: "text/html", body: `<img src="a.png"><img src="missing.png"><img src="http://elsewhere.invalid/x.png"><script></script>`},
			"/a.png": {contentType: "image/png", body: "a"},
		})

		var stats Stats
		spider := newTestSpider(server, WithStatsHandler(func(s Stats) { stats = s }))
		if err := spider.Crawl(context.Background(), server.URL, DefaultOptions(), &recordingSink{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.Emitted != 2 || stats.Failed != 1 || stats.Skipped != 2 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})
}

func TestSinkFunc(t *testing.T) {
	t.Parallel()

	var got string
	sink := SinkFunc(func(_ context.Context, path string, _ []byte) error {
		got = path
		return nil
	})
	if err := sink.Emit(context.Background(), "a/b.css", nil); err != nil || got != "a/b.css" {
		t.Errorf("unexpected result %q, %v", got, err)
	}
}

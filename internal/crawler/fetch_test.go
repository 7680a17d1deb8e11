package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// TestHTTPFetcher tests fetching over HTTP.
func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		_, _ = w.Write([]byte("body{color:red}\nua=" + r.UserAgent())) //nolint:errcheck
	})
	mux.HandleFunc("/missing.png", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	})
	mux.HandleFunc("/big.bin", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64))) //nolint:errcheck
	})
	mux.HandleFunc("/old.css", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/style.css", http.StatusMovedPermanently)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	ctx := context.Background()

	t.Run("returns body and content type", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(server.Client(), WithUserAgent("onepage-test"))
		resp, err := f.Fetch(ctx, mustParse(t, server.URL+"/style.css"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(string(resp.Body), "body{color:red}") {
			t.Errorf("unexpected body %q", resp.Body)
		}
		if !strings.HasSuffix(string(resp.Body), "ua=onepage-test") {
			t.Errorf("user agent not sent, body %q", resp.Body)
		}
		if !resp.IsStylesheet() {
			t.Errorf("expected stylesheet, content type %q", resp.ContentType)
		}
	})

	t.Run("non-2xx is an HTTPStatusError", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(server.Client())
		for path, code := range map[string]int{"/missing.png": 404, "/broken": 500} {
			_, err := f.Fetch(ctx, mustParse(t, server.URL+path))

			var statusErr *HTTPStatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("%s: expected HTTPStatusError, got %v", path, err)
			}
			if statusErr.StatusCode != code {
				t.Errorf("%s: expected status %d, got %d", path, code, statusErr.StatusCode)
			}
		}
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(server.Client(), WithMaxBodySize(16))
		_, err := f.Fetch(ctx, mustParse(t, server.URL+"/big.bin"))
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", err)
		}

		f = NewHTTPFetcher(server.Client(), WithMaxBodySize(64))
		if _, err := f.Fetch(ctx, mustParse(t, server.URL+"/big.bin")); err != nil {
			t.Errorf("body at the limit should be accepted: %v", err)
		}
	})

	t.Run("follows redirects", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(server.Client())
		resp, err := f.Fetch(ctx, mustParse(t, server.URL+"/old.css"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.URL.Path != "/old.css" {
			t.Errorf("expected requested path /old.css, got %q", resp.URL.Path)
		}
		if resp.FinalURL.Path != "/style.css" {
			t.Errorf("expected final path /style.css, got %q", resp.FinalURL.Path)
		}
	})

	t.Run("transport failure is a NetworkError", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		target := closed.URL + "/x.js"
		closed.Close()

		f := NewHTTPFetcher(nil)
		_, err := f.Fetch(ctx, mustParse(t, target))

		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			t.Fatalf("expected NetworkError, got %v", err)
		}
		if netErr.URL != target {
			t.Errorf("expected URL %q, got %q", target, netErr.URL)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		canceled, cancel := context.WithCancel(context.Background())
		cancel()

		f := NewHTTPFetcher(server.Client())
		_, err := f.Fetch(canceled, mustParse(t, server.URL+"/style.css"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestResponseIsStylesheet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path        string
		contentType string
		want        bool
	}{
		{path: "/a.css", contentType: "text/css", want: true},
		{path: "/a", contentType: "text/css; charset=utf-8", want: true},
		{path: "/a.CSS", contentType: "", want: true},
		{path: "/a.css", contentType: "text/plain", want: true},
		{path: "/a.png", contentType: "image/png", want: false},
		{path: "/font.woff2", contentType: "", want: false},
	}

	for _, tt := range tests {
		resp := &Response{URL: &url.URL{Path: tt.path}, ContentType: tt.contentType}
		if got := resp.IsStylesheet(); got != tt.want {
			t.Errorf("IsStylesheet(%q, %q) = %v, want %v", tt.path, tt.contentType, got, tt.want)
		}
	}
}

func TestFetcherFunc(t *testing.T) {
	t.Parallel()

	want := &Response{Body: []byte("ok")}
	f := FetcherFunc(func(_ context.Context, _ *url.URL) (*Response, error) {
		return want, nil
	})

	got, err := f.Fetch(context.Background(), &url.URL{})
	if err != nil || got != want {
		t.Errorf("unexpected result %v, %v", got, err)
	}
}

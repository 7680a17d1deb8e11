package crawler

import (
	"errors"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

// TestResolve tests reference resolution against a base URL.
func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{name: "relative to root document", base: "http://x/a/index.html", ref: "b/s.css", want: "http://x/a/b/s.css"},
		{name: "relative to stylesheet", base: "http://x/a/b/s.css", ref: "img/i.png", want: "http://x/a/b/img/i.png"},
		{name: "parent directory", base: "http://x/a/b/s.css", ref: "../up.png", want: "http://x/a/up.png"},
		{name: "absolute path", base: "http://x/a/b/s.css", ref: "/abs.png", want: "http://x/abs.png"},
		{name: "protocol relative", base: "https://x/a/", ref: "//other/x.png", want: "https://other/x.png"},
		{name: "absolute URL", base: "http://x/", ref: "http://y/z.js", want: "http://y/z.js"},
		{name: "surrounding whitespace", base: "http://x/", ref: "  pic.png\n", want: "http://x/pic.png"},
		{name: "query is kept", base: "http://x/", ref: "app.js?v=1", want: "http://x/app.js?v=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(mustParse(t, tt.base), tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
			}
		})
	}

	t.Run("invalid reference", func(t *testing.T) {
		t.Parallel()

		base := mustParse(t, "http://x/")
		for _, ref := range []string{"http://[::1", "%zz.png"} {
			_, err := Resolve(base, ref)
			if !errors.Is(err, ErrInvalidReference) {
				t.Errorf("Resolve(%q) error = %v, want ErrInvalidReference", ref, err)
			}
		}
	})
}

// TestSameOrigin tests origin comparison.
func TestSameOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{a: "http://example.com/a", b: "http://example.com/b/c", want: true},
		{a: "http://Example.COM/", b: "http://example.com/", want: true},
		{a: "http://example.com/", b: "http://example.com:80/", want: true},
		{a: "https://example.com/", b: "https://example.com:443/x", want: true},
		{a: "HTTP://example.com/", b: "http://example.com/", want: true},
		{a: "http://example.com/", b: "https://example.com/", want: false},
		{a: "http://example.com/", b: "http://example.com:8080/", want: false},
		{a: "http://example.com/", b: "http://www.example.com/", want: false},
		{a: "http://127.0.0.1:5000/", b: "http://127.0.0.1:5001/", want: false},
	}

	for _, tt := range tests {
		got := SameOrigin(mustParse(t, tt.a), mustParse(t, tt.b))
		if got != tt.want {
			t.Errorf("SameOrigin(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOriginString(t *testing.T) {
	t.Parallel()

	got := OriginOf(mustParse(t, "https://Example.com/path")).String()
	if got != "https://example.com:443" {
		t.Errorf("expected %q, got %q", "https://example.com:443", got)
	}

	got = OriginOf(mustParse(t, "gopher://example.com/")).String()
	if got != "gopher://example.com" {
		t.Errorf("expected %q, got %q", "gopher://example.com", got)
	}
}

// TestRelativePath tests derivation of the sink key from a URL.
func TestRelativePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "http://x/img/i.png", want: "img/i.png"},
		{raw: "http://x/img/i.png?v=2#frag", want: "img/i.png"},
		{raw: "http://x/a/b/s.css", want: "a/b/s.css"},
		{raw: "http://x/caf%C3%A9.png", want: "café.png"},
		{raw: "http://x/", want: ""},
		{raw: "http://x", want: ""},
	}

	for _, tt := range tests {
		if got := RelativePath(mustParse(t, tt.raw)); got != tt.want {
			t.Errorf("RelativePath(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

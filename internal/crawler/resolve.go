package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// RootPath is the relative path under which the root document is always emitted.
const RootPath = "index.html"

// defaultPorts maps schemes to the port implied when a URL omits one.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// Origin is the (scheme, host, port) identity of a URL.
type Origin struct {
	Scheme string
	Host   string
	Port   string
}

// OriginOf returns the origin of u.
// The host is lowercased and an omitted port is replaced by the scheme's
// default port, so "http://Example.com" and "http://example.com:80" share
// one origin.
func OriginOf(u *url.URL) Origin {
	scheme := strings.ToLower(u.Scheme)
	port := u.Port()
	if port == "" {
		port = defaultPorts[scheme]
	}
	return Origin{
		Scheme: scheme,
		Host:   strings.ToLower(u.Hostname()),
		Port:   port,
	}
}

// String returns the origin in scheme://host:port form.
func (o Origin) String() string {
	if o.Port == "" {
		return o.Scheme + "://" + o.Host
	}
	return o.Scheme + "://" + o.Host + ":" + o.Port
}

// SameOrigin reports whether a and b have the same scheme, host and port.
func SameOrigin(a, b *url.URL) bool {
	return OriginOf(a) == OriginOf(b)
}

// Resolve resolves ref against base.
// Leading and trailing whitespace in ref is ignored, as browsers do for
// attribute values. The returned error wraps ErrInvalidReference.
func Resolve(base *url.URL, ref string) (*url.URL, error) {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidReference, ref, err)
	}
	return base.ResolveReference(u), nil
}

// RelativePath returns the site-relative path of u: its path component
// without the leading separator. Query and fragment are never part of it.
func RelativePath(u *url.URL) string {
	return strings.TrimPrefix(u.Path, "/")
}

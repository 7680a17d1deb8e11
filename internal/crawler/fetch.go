package crawler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// DefaultMaxBodySize is the largest response body HTTPFetcher accepts unless configured otherwise.
const DefaultMaxBodySize = 50 * 1024 * 1024 // 50MB

// Response is a successfully fetched resource.
type Response struct {
	// URL is the URL that was requested.
	URL *url.URL

	// FinalURL is the URL of the last request after redirects.
	FinalURL *url.URL

	// ContentType is the Content-Type header of the final response.
	ContentType string

	// Body is the complete response body.
	Body []byte
}

// IsStylesheet reports whether the response is CSS, judged by its media
// type or, when the server sends none, by the path extension.
func (r *Response) IsStylesheet() bool {
	if r.ContentType != "" {
		if mediaType, _, err := mime.ParseMediaType(r.ContentType); err == nil && mediaType == "text/css" {
			return true
		}
	}
	return strings.EqualFold(path.Ext(r.URL.Path), ".css")
}

// Fetcher retrieves a single absolute URL.
//
// Implementations return *NetworkError for transport failures and
// *HTTPStatusError when the final status is not 2xx. A Fetcher does not
// retry and must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, u *url.URL) (*Response, error)

// Fetch calls f(ctx, u).
func (f FetcherFunc) Fetch(ctx context.Context, u *url.URL) (*Response, error) {
	return f(ctx, u)
}

// HTTPFetcher fetches resources with an *http.Client.
// Redirects are followed according to the client's redirect policy.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize limits the accepted response body size in bytes.
// Non-positive values keep the default.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client means http.DefaultClient.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTPFetcher{
		client:      client,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs one GET request against u.
func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	// Read one byte past the limit so an oversized body is detected
	// rather than silently truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &NetworkError{URL: u.String(), Err: err}
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, u, f.maxBodySize)
	}

	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}

	return &Response{
		URL:         u,
		FinalURL:    final,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

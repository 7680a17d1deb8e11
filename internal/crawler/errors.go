package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// Crawl errors.
//
// ErrInvalidRootURL and ErrRootFetchFailed are the only errors returned by
// Spider.Crawl. The remaining errors describe failures of individual
// resources and are delivered to the FailureHandler.
var (
	// ErrInvalidRootURL is returned when the root URL cannot be parsed or is not absolute.
	ErrInvalidRootURL = errors.New("invalid root URL")

	// ErrRootFetchFailed is returned when the root document cannot be fetched.
	ErrRootFetchFailed = errors.New("failed to fetch root document")

	// ErrInvalidReference is reported when a reference cannot be resolved
	// to a URL with a usable path.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrBodyTooLarge is reported when a response exceeds the configured body size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrNoSink is returned when Crawl is called without a sink.
	ErrNoSink = errors.New("no sink provided")
)

// HTTPStatusError is reported when a server answers with a non-2xx status
// after all redirects have been followed.
type HTTPStatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the final HTTP status code.
	StatusCode int
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// NetworkError is reported when a request fails at the transport level
// (DNS, connection, timeout, cancelled context, truncated body).
type NetworkError struct {
	// URL is the requested URL.
	URL string

	// Err is the underlying transport error.
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

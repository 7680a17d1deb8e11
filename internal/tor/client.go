package tor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// checkProxyTimeout bounds the SOCKS5 probe in CheckConnection.
const checkProxyTimeout = 2 * time.Second

// maxRedirects is the redirect limit of every client created here.
const maxRedirects = 10

// Client routes connections through a SOCKS5 proxy.
type Client struct {
	proxyAddress string
	dialer       proxy.Dialer
	timeout      time.Duration
}

// NewClient creates a Client for the proxy at proxyAddress ("host:port").
// The timeout becomes the default timeout of HTTP clients created from it.
// The proxy is not contacted; call CheckConnection to verify it.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port does not require authentication.
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: proxyAddress,
		dialer:       dialer,
		timeout:      timeout,
	}, nil
}

// isValidProxyAddress reports whether address is host:port with a
// non-empty host and a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// SOCKS5 protocol constants.
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5ProbeHost does not exist; the probe only needs any CONNECT reply.
	socks5ProbeHost = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
)

// CheckConnection probes the proxy with a SOCKS5 handshake followed by a
// CONNECT request to a non-existent onion host. Any well-formed reply,
// including a failure code, means the proxy works.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	if status := negotiate(conn); status != ProxyStatusOK {
		return status
	}
	return probeConnect(conn)
}

// negotiate offers "no authentication" and expects the server to accept it.
func negotiate(conn net.Conn) ProxyStatus {
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return readFailure(err)
	}
	if reply[0] != socks5Version || reply[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// probeConnect sends a CONNECT request and checks the reply header.
func probeConnect(conn net.Conn) ProxyStatus {
	const port = 80

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomID, byte(len(socks5ProbeHost))}
	req = append(req, socks5ProbeHost...)
	req = append(req, byte(port>>8), byte(port&0xff))
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	// version, reply code, reserved, address type
	reply := make([]byte, 4)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return readFailure(err)
	}
	if reply[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// DialContext connects to address through the proxy.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		ch <- dialResult{conn, err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// NewHTTPClient creates an HTTP client whose connections all go through
// the proxy.
func (c *Client) NewHTTPClient(opts ...HTTPOption) *http.Client {
	transport := &http.Transport{
		DialContext: c.DialContext,
		// Each connection is a Tor circuit; keep the pool small.
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		// Compressed response sizes leak content over Tor.
		DisableCompression: true,
	}
	return newHTTPClient(transport, c.timeout, opts)
}

// NewDirectHTTPClient creates an HTTP client without a proxy.
func NewDirectHTTPClient(timeout time.Duration, opts ...HTTPOption) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	return newHTTPClient(transport, timeout, opts)
}

// HTTPOption configures clients created by this package.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	cookie      string
	headers     map[string]string
	insecureTLS bool
}

// WithSiteHeaders adds a raw cookie string and fixed headers to every
// request, including redirects.
func WithSiteHeaders(cookie string, headers map[string]string) HTTPOption {
	return func(c *httpConfig) {
		c.cookie = cookie
		c.headers = headers
	}
}

// WithInsecureTLS disables certificate verification. Onion services
// commonly use self-signed certificates; the onion address itself
// authenticates the service.
func WithInsecureTLS(insecure bool) HTTPOption {
	return func(c *httpConfig) {
		c.insecureTLS = insecure
	}
}

func newHTTPClient(transport *http.Transport, timeout time.Duration, opts []HTTPOption) *http.Client {
	var cfg httpConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.insecureTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // onion services use self-signed certificates
		}
	}

	var rt http.RoundTripper = transport
	if cfg.cookie != "" || len(cfg.headers) > 0 {
		rt = &HeaderTransport{Base: transport, Cookie: cfg.cookie, Headers: cfg.headers}
	}

	// cookiejar.New only fails on invalid options.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// HeaderTransport injects a cookie and fixed headers into every request.
type HeaderTransport struct {
	// Base performs the request. Nil means http.DefaultTransport.
	Base http.RoundTripper

	// Cookie is a raw cookie string such as "session=abc".
	// It is appended to any Cookie header already present.
	Cookie string

	// Headers are set on every request, replacing existing values.
	Headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.Cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.Cookie)
		} else {
			clone.Header.Set("Cookie", t.Cookie)
		}
	}
	for key, value := range t.Headers {
		clone.Header.Set(key, value)
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

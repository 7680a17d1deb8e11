package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "onepage"

	// DefaultOutDir is the directory mirrors are written to: the working directory.
	DefaultOutDir = "."

	// DefaultTimeout bounds every single HTTP request, including redirects
	// and reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultTorTimeout replaces DefaultTimeout when requests go through Tor.
	// Circuits add several relay hops of latency.
	DefaultTorTimeout = 120 * time.Second

	// DefaultRenderTimeout bounds loading the root page in headless Chrome.
	DefaultRenderTimeout = 60 * time.Second

	// DefaultBatchSize is the number of targets mirrored at the same time.
	DefaultBatchSize = 4

	// DefaultConcurrency of zero leaves the per-crawl fan-out unbounded.
	DefaultConcurrency = 0

	// DefaultUserAgent identifies onepage in HTTP requests.
	DefaultUserAgent = "onepage/1.0 (+https://github.com/nao1215/onepage)"

	// DefaultMaxBodySize limits a single resource to 50MB.
	DefaultMaxBodySize = 50 * 1024 * 1024

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all options of a mirror run.
// It is populated from CLI flags and passed down explicitly; there is no
// global configuration state.
type Config struct {
	// Targets are the root URLs to mirror.
	Targets []string

	// OutDir is the directory mirrors are written to. With more than one
	// target each mirror goes to a subdirectory named after its host.
	OutDir string

	// SkipJS disables mirroring of <script> sources (-j).
	SkipJS bool

	// SkipCSS disables stylesheets and everything they reference (-c).
	SkipCSS bool

	// SkipImages disables mirroring of <img> sources (-i).
	SkipImages bool

	// Simulate crawls without writing anything (-s).
	Simulate bool

	// Dedupe fetches each absolute URL at most once per crawl.
	Dedupe bool

	// Concurrency caps simultaneous fetches per crawl. 0 means unbounded.
	Concurrency int

	// BatchSize is the number of targets mirrored concurrently.
	BatchSize int

	// Timeout bounds every single HTTP request.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the largest accepted resource in bytes. 0 means the default.
	MaxBodySize int64

	// Render fetches the root document through headless Chrome so that
	// assets inserted by scripts are discovered too.
	Render bool

	// RenderTimeout bounds loading the root document in the browser.
	RenderTimeout time.Duration

	// ChromePath is the browser executable. Empty means auto-detect.
	ChromePath string

	// ProxyAddress is an external SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes every request through it.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport prints the run report as JSON. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the run report as Markdown. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is the path to the site configuration file. If empty,
	// .onepage is looked up in the working directory, the home directory
	// and the XDG config directory.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB records each run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutDir:            DefaultOutDir,
		Concurrency:       DefaultConcurrency,
		BatchSize:         DefaultBatchSize,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		RenderTimeout:     DefaultRenderTimeout,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for onepage.
// On Linux: ~/.local/share/onepage
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for onepage.
// On Linux: ~/.config/onepage
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for onepage.
// The headless browser profile lives here.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxies
	}

	if c.Render && c.RenderTimeout <= 0 {
		return ErrInvalidRenderTimeout
	}

	if !c.Simulate && c.OutDir == "" {
		return ErrNoOutDir
	}

	return nil
}

// UsesProxy reports whether requests are routed through SOCKS5, either an
// external proxy or the embedded Tor daemon.
func (c *Config) UsesProxy() bool {
	return c.UseTor || c.ProxyAddress != ""
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/onepage/internal/config"
	"github.com/nao1215/onepage/internal/crawler"
	"github.com/nao1215/onepage/internal/database"
	applog "github.com/nao1215/onepage/internal/log"
	"github.com/nao1215/onepage/internal/metadata"
	"github.com/nao1215/onepage/internal/model"
	"github.com/nao1215/onepage/internal/pipeline"
	"github.com/nao1215/onepage/internal/report"
	"github.com/nao1215/onepage/internal/tor"
	"github.com/spf13/cobra"
)

// errMirrorFailed is returned when at least one root document could not be mirrored.
var errMirrorFailed = errors.New("mirror failed")

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror <url>...",
		Short: "Mirror a web page and its same-origin assets",
		Long: `Mirror downloads the page at each URL and writes it as index.html,
followed by every same-origin stylesheet, script and image it references.
Stylesheets are scanned for url() and @import references, which are
mirrored recursively. Cross-origin and data: references are skipped.

A missing asset is reported but does not stop the mirror. The command
fails only when a page itself cannot be fetched.

With more than one URL, each mirror is written to a subdirectory of the
output directory named after the URL's host.

Examples:
  # Mirror into the current directory
  onepage mirror https://example.com/

  # Mirror into ./out without scripts
  onepage mirror -o out -j https://example.com/

  # Show what would be saved without writing anything
  onepage mirror -s https://example.com/

  # Mirror a page whose assets are added by scripts
  onepage mirror --render https://example.com/app

  # Mirror an onion service through an embedded Tor daemon
  onepage mirror --tor http://<address>.onion/

  # Print a Markdown report to a file
  onepage mirror -m -r report.md https://example.com/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMirrorCmd,
	}

	// Output flags
	cmd.Flags().StringP("out-dir", "o", config.DefaultOutDir,
		"Directory the mirror is written to (created if needed)")
	cmd.Flags().BoolP("simulate", "s", false,
		"Crawl without writing any file")

	// Asset flags
	cmd.Flags().BoolP("no-js", "j", false, "Do not mirror scripts")
	cmd.Flags().BoolP("no-css", "c", false,
		"Do not mirror stylesheets (and nothing they reference)")
	cmd.Flags().BoolP("no-images", "i", false, "Do not mirror <img> sources")
	cmd.Flags().Bool("dedupe", false,
		"Fetch each absolute URL at most once per mirror")

	// Crawl behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request (default with --tor or --proxy: "+config.DefaultTorTimeout.String()+")")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Maximum simultaneous fetches per mirror (0 = unlimited)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of URLs mirrored at the same time")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Largest accepted resource in bytes")

	// Rendering flags
	cmd.Flags().Bool("render", false,
		"Load the page in headless Chrome before extracting assets")
	cmd.Flags().Duration("render-timeout", config.DefaultRenderTimeout,
		"Timeout for loading the page in the browser")
	cmd.Flags().String("chrome-path", "",
		"Chrome executable (default: auto-detect)")

	// Proxy flags
	cmd.Flags().Bool("tor", false,
		"Route every request through an embedded Tor daemon")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().StringP("proxy", "p", "",
		"Route every request through a SOCKS5 proxy (e.g. 127.0.0.1:9050)")

	// Configuration file
	cmd.Flags().String("config", "",
		"Configuration file path (default: .onepage in current or home directory)")

	// Report flags
	cmd.Flags().Bool("json", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "r", "",
		"Write the report to a file instead of stdout")
	cmd.Flags().BoolP("quiet", "q", false,
		"Only log warnings and errors")
	cmd.Flags().Bool("log-json", false, "Write logs as JSON")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}
	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose, quiet, logJSON)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	progress := cmd.ErrOrStderr()
	if quiet {
		progress = io.Discard
	}
	return runMirror(ctx, cfg, logger, cmd.OutOrStdout(), progress)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newLogger creates the redacting logger used for the whole run.
func newLogger(w io.Writer, verbose, quiet, jsonFormat bool) *slog.Logger {
	switch {
	case quiet:
		return applog.NewQuietLogger(w)
	case jsonFormat:
		return applog.NewSecureJSONLogger(w, verbose)
	default:
		return applog.NewSecureLogger(w, verbose)
	}
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.OutDir, err = flags.GetString("out-dir"); err != nil {
		return nil, err
	}
	if cfg.Simulate, err = flags.GetBool("simulate"); err != nil {
		return nil, err
	}
	if cfg.SkipJS, err = flags.GetBool("no-js"); err != nil {
		return nil, err
	}
	if cfg.SkipCSS, err = flags.GetBool("no-css"); err != nil {
		return nil, err
	}
	if cfg.SkipImages, err = flags.GetBool("no-images"); err != nil {
		return nil, err
	}
	if cfg.Dedupe, err = flags.GetBool("dedupe"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.Render, err = flags.GetBool("render"); err != nil {
		return nil, err
	}
	if cfg.RenderTimeout, err = flags.GetDuration("render-timeout"); err != nil {
		return nil, err
	}
	if cfg.ChromePath, err = flags.GetString("chrome-path"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory && !cfg.Simulate

	// Tor circuits are slow; widen the request timeout unless it was set.
	if cfg.UsesProxy() && !flags.Changed("timeout") {
		cfg.Timeout = config.DefaultTorTimeout
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	return cfg, nil
}

// loadSiteConfigs loads the site configuration file. An explicitly given
// path must exist; otherwise a missing file yields an empty configuration.
func loadSiteConfigs(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	switch {
	case found != "":
		sites, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		return sites, nil
	case path != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	default:
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}
}

// runMirror mirrors every target and writes one report per target to out.
// Progress lines go to progress.
func runMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, progress io.Writer) error {
	logger.Debug("starting mirror",
		"targets", len(cfg.Targets),
		"batchSize", cfg.BatchSize,
		"simulate", cfg.Simulate,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.MirrorDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	client, cleanup, err := connectProxy(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	output, closeOutput, err := openReportOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := newReportWriter(cfg, output)

	inspector := metadata.NewChain(
		metadata.NewEXIFInspector(metadata.WithLogger(logger)),
		metadata.NewContentInspector(metadata.WithContentLogger(logger)),
	)

	bp := pipeline.NewBatchProcessor(
		func(target string) (*pipeline.Pipeline, error) {
			fmt.Fprintf(progress, "Start %s\n", target)
			return createPipelineForTarget(cfg, target, client, db, inspector, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var (
		mu     sync.Mutex
		failed int
	)
	startTime := time.Now()
	err = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.MirrorReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if r.Succeeded() {
			fmt.Fprintf(progress, "Success %s (%d files, %d failed)\n", r.RootURL, len(r.Resources), len(r.Failures))
		} else {
			failed++
			fmt.Fprintf(progress, "Failed %s: %s\n", r.RootURL, r.Error)
		}

		if _, err := writer.Write(r); err != nil {
			logger.Error("report failed", "url", r.RootURL, "error", err)
		}
	})
	logger.Debug("mirror finished", "elapsed", time.Since(startTime).Round(time.Millisecond))

	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d page(s) could not be mirrored", errMirrorFailed, failed, len(cfg.Targets))
	}
	return nil
}

// connectProxy returns the SOCKS5 client for the run, or nil for direct
// connections. cleanup stops an embedded Tor daemon and is never nil.
func connectProxy(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tor.Client, func(), error) {
	noop := func() {}

	switch {
	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed: %s (make sure Tor is running at %s)",
				status, cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return client, noop, nil

	case cfg.UseTor:
		return startEmbeddedTor(ctx, cfg, logger)

	default:
		return nil, noop, nil
	}
}

// startEmbeddedTor launches the embedded Tor daemon.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tor.Client, func(), error) {
	logger.Info("starting embedded Tor daemon (this may take a few minutes)...",
		"timeout", cfg.TorStartupTimeout,
	)

	embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, func() {}, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := embedded.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := embedded.NewClient(cfg.Timeout)
	if err != nil {
		stop()
		return nil, func() {}, fmt.Errorf("failed to create Tor client: %w", err)
	}

	logger.Info("embedded Tor daemon ready", "socks", embedded.SocksAddr())
	return client, stop, nil
}

// createPipelineForTarget creates a pipeline with the site configuration
// of target's host applied.
func createPipelineForTarget(
	cfg *config.Config,
	target string,
	client *tor.Client,
	db *database.MirrorDB,
	inspector metadata.Inspector,
	logger *slog.Logger,
) (*pipeline.Pipeline, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crawler.ErrInvalidRootURL, err)
	}

	site := cfg.SiteConfigs.GetSiteConfig(u.Host)
	skipJS, skipCSS, skipImages, render := site.Resolve(cfg.SkipJS, cfg.SkipCSS, cfg.SkipImages, cfg.Render)

	userAgent := cfg.UserAgent
	if site.UserAgent != "" {
		userAgent = site.UserAgent
	}

	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineOptions(crawler.Options{
			SkipJS:     skipJS,
			SkipCSS:    skipCSS,
			SkipImages: skipImages,
		}),
		pipeline.WithPipelineOutDir(targetOutDir(cfg, u)),
		pipeline.WithPipelineSimulate(cfg.Simulate),
		pipeline.WithPipelineDedupe(cfg.Dedupe),
		pipeline.WithPipelineConcurrency(cfg.Concurrency),
		pipeline.WithPipelineTimeout(cfg.Timeout),
		pipeline.WithPipelineUserAgent(userAgent),
		pipeline.WithPipelineMaxBodySize(cfg.MaxBodySize),
		pipeline.WithPipelineRender(render, cfg.RenderTimeout, cfg.ChromePath),
		pipeline.WithPipelineInspector(inspector),
		// Onion services usually present self-signed certificates.
		pipeline.WithPipelineInsecureTLS(tor.IsOnionHost(u.Hostname())),
	}
	if site.Cookie != "" {
		configOpts = append(configOpts, pipeline.WithPipelineCookie(site.Cookie))
	}
	if len(site.Headers) > 0 {
		configOpts = append(configOpts, pipeline.WithPipelineHeaders(site.Headers))
	}
	if render && (len(cfg.Targets) == 1 || cfg.BatchSize == 1) {
		configOpts = append(configOpts,
			pipeline.WithPipelineBrowserProfile(filepath.Join(config.XDGCacheDir(), "chrome")))
	}
	if db != nil {
		configOpts = append(configOpts, pipeline.WithPipelineDB(db))
	}

	return pipeline.DefaultPipeline(client, []pipeline.Option{pipeline.WithLogger(logger)}, configOpts...), nil
}

// targetOutDir returns the output directory of one target. With several
// targets each one gets a subdirectory named after its host.
func targetOutDir(cfg *config.Config, u *url.URL) string {
	if len(cfg.Targets) <= 1 {
		return cfg.OutDir
	}
	host := strings.NewReplacer(":", "_", "/", "_", `\`, "_").Replace(u.Host)
	if host == "" || host == "." || host == ".." {
		host = "_"
	}
	return filepath.Join(cfg.OutDir, host)
}

// openReportOutput returns the report destination: the report file if one
// is set, otherwise fallback.
func openReportOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	// Reports can contain URLs with credentials and metadata findings.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck
}

// newReportWriter returns the writer for the requested report format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

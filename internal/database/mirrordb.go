package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/onepage/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "onepage.db"

// timestampLayout is fixed width so that stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrDatabaseNotFound is returned by Open when the file does not exist
	// and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrNotEnoughRuns is returned by LatestTwo when fewer than two runs exist.
	ErrNotEnoughRuns = errors.New("at least 2 runs are required for comparison")
)

// MirrorDB stores mirror runs.
type MirrorDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the database in dbDir.
func Open(dbDir string, opts Options) (*MirrorDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
	} else if err != nil {
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	mdb := &MirrorDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := mdb.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return mdb, nil
}

// Path returns the database file path.
func (m *MirrorDB) Path() string {
	return m.dbPath
}

// Close closes the database.
func (m *MirrorDB) Close() error {
	return m.db.Close()
}

func (m *MirrorDB) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS mirror_runs (
		id TEXT PRIMARY KEY,
		root_url TEXT NOT NULL,
		host TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		resource_count INTEGER NOT NULL,
		failure_count INTEGER NOT NULL,
		total_bytes INTEGER NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root_url ON mirror_runs(root_url);
	CREATE INDEX IF NOT EXISTS idx_runs_host ON mirror_runs(host);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON mirror_runs(timestamp);

	CREATE TABLE IF NOT EXISTS mirror_resources (
		run_id TEXT NOT NULL,
		path TEXT NOT NULL,
		kind TEXT NOT NULL,
		size INTEGER NOT NULL,
		sha256 TEXT NOT NULL,
		PRIMARY KEY (run_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_resources_sha256 ON mirror_resources(sha256);
	`
	_, err := m.db.ExecContext(ctx, schema)
	return err
}

// SaveRun stores report and its resources in one transaction.
// Saving the same run ID twice replaces the earlier copy.
func (m *MirrorDB) SaveRun(ctx context.Context, report *model.MirrorReport) (err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the original error is more useful
		}
	}()

	if err = deleteRuns(ctx, tx, `id = ?`, report.ID); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO mirror_runs (id, root_url, host, timestamp, resource_count, failure_count, total_bytes, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.RootURL,
		report.Host,
		report.StartedAt.UTC().Format(timestampLayout),
		len(report.Resources),
		len(report.Failures),
		report.TotalBytes(),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO mirror_resources (run_id, path, kind, size, sha256) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare resource insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range report.Resources {
		if _, err = stmt.ExecContext(ctx, report.ID, res.Path, string(res.Kind), res.Size, res.SHA256); err != nil {
			return fmt.Errorf("failed to save resource %s: %w", res.Path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, root_url, host, timestamp, resource_count, failure_count, total_bytes`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.RunSummary, error) {
	var (
		s         model.RunSummary
		timestamp string
	)
	if err := row.Scan(&s.ID, &s.RootURL, &s.Host, &timestamp, &s.ResourceCount, &s.FailureCount, &s.TotalBytes); err != nil {
		return model.RunSummary{}, err
	}
	s.StartedAt = parseTimestamp(timestamp)
	return s, nil
}

// ListRuns returns the runs of rootURL, newest first.
func (m *MirrorDB) ListRuns(ctx context.Context, rootURL string) ([]model.RunSummary, error) {
	rows, err := m.db.QueryContext(ctx, `
	SELECT `+runColumns+` FROM mirror_runs
	WHERE root_url = ?
	ORDER BY timestamp DESC, rowid DESC
	`, rootURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		s, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// GetRun returns the full report of a run, or nil if it does not exist.
func (m *MirrorDB) GetRun(ctx context.Context, id string) (*model.MirrorReport, error) {
	var reportJSON string
	err := m.db.QueryRowContext(ctx, `SELECT report_json FROM mirror_runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.MirrorReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetRunSummary returns the summary of a run, or nil if it does not exist.
func (m *MirrorDB) GetRunSummary(ctx context.Context, id string) (*model.RunSummary, error) {
	s, err := scanRun(m.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM mirror_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &s, nil
}

// RunResources returns the files of a run sorted by path.
func (m *MirrorDB) RunResources(ctx context.Context, runID string) ([]model.Resource, error) {
	rows, err := m.db.QueryContext(ctx, `
	SELECT path, kind, size, sha256 FROM mirror_resources
	WHERE run_id = ?
	ORDER BY path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var resources []model.Resource
	for rows.Next() {
		var (
			res  model.Resource
			kind string
		)
		if err := rows.Scan(&res.Path, &kind, &res.Size, &res.SHA256); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		res.Kind = model.ResourceKind(kind)
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

// LatestTwo returns the previous and the current run of rootURL.
func (m *MirrorDB) LatestTwo(ctx context.Context, rootURL string) (previous, current model.RunSummary, err error) {
	runs, err := m.ListRuns(ctx, rootURL)
	if err != nil {
		return previous, current, err
	}
	if len(runs) < 2 {
		return previous, current, fmt.Errorf("%w (found %d)", ErrNotEnoughRuns, len(runs))
	}
	return runs[1], runs[0], nil
}

// Diff compares two stored runs by their resources.
func (m *MirrorDB) Diff(ctx context.Context, previous, current model.RunSummary) (*model.MirrorDiff, error) {
	before, err := m.RunResources(ctx, previous.ID)
	if err != nil {
		return nil, err
	}
	after, err := m.RunResources(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	return model.NewMirrorDiff(previous, current, before, after), nil
}

// SiteSummary aggregates the runs of one root URL.
type SiteSummary struct {
	RootURL string    `json:"root_url"`
	Host    string    `json:"host"`
	Runs    int       `json:"runs"`
	LastRun time.Time `json:"last_run"`
}

// ListSites returns every mirrored root URL, sorted by host and URL.
func (m *MirrorDB) ListSites(ctx context.Context) ([]SiteSummary, error) {
	rows, err := m.db.QueryContext(ctx, `
	SELECT root_url, host, COUNT(*), MAX(timestamp) FROM mirror_runs
	GROUP BY root_url, host
	ORDER BY host, root_url
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []SiteSummary
	for rows.Next() {
		var (
			s    SiteSummary
			last string
		)
		if err := rows.Scan(&s.RootURL, &s.Host, &s.Runs, &last); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		s.LastRun = parseTimestamp(last)
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// PruneRuns deletes all but the newest keep runs of rootURL and returns
// the number of deleted runs.
func (m *MirrorDB) PruneRuns(ctx context.Context, rootURL string, keep int) (n int64, err error) {
	keep = max(keep, 0)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the original error is more useful
		}
	}()

	var before int64
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM mirror_runs WHERE root_url = ?`, rootURL).Scan(&before); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}

	err = deleteRuns(ctx, tx, `root_url = ? AND id NOT IN (
		SELECT id FROM mirror_runs WHERE root_url = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	)`, rootURL, rootURL, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return max(before-int64(keep), 0), nil
}

// deleteRuns deletes the runs matching where, together with their resources.
func deleteRuns(ctx context.Context, tx *sql.Tx, where string, args ...any) error {
	if _, err := tx.ExecContext(ctx, `
	DELETE FROM mirror_resources WHERE run_id IN (SELECT id FROM mirror_runs WHERE `+where+`)
	`, args...); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM mirror_runs WHERE `+where, args...)
	return err
}

// timestampFormats lists the layouts SQLite timestamps may come back in.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time if s matches no known layout.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

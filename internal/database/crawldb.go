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

	"github.com/nao1215/clickcrawl/internal/model"
)

// DBFile is the database file name inside the database directory.
const DBFile = "clickcrawl.db"

// CrawlDB provides SQLite-based storage for crawl runs.
// A run is stored three ways: the full result as JSON, one row per visited
// URL with its parent, and one row per failure.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFile)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, ErrDatabaseNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		origin TEXT NOT NULL,
		start_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		status TEXT NOT NULL,
		visited_count INTEGER NOT NULL,
		action_count INTEGER NOT NULL,
		failure_count INTEGER NOT NULL,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_origin ON runs(origin);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Visited URLs with the parent that discovered them
	CREATE TABLE IF NOT EXISTS edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		parent TEXT,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_url ON edges(url);

	-- Failures recorded during a run
	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		url TEXT NOT NULL,
		action TEXT,
		message TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a finished run. Saving the same run ID twice fails.
func (cdb *CrawlDB) SaveRun(ctx context.Context, result *model.CrawlResult) (err error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, origin, start_url, started_at, finished_at, status,
		visited_count, action_count, failure_count, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.RunID,
		result.Origin,
		result.StartURL,
		formatTimestamp(result.StartedAt),
		formatTimestamp(result.FinishedAt),
		result.Status(),
		len(result.Visited),
		len(result.Actions),
		len(result.Failures),
		string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for i, edge := range result.Edges() {
		var parent sql.NullString
		if edge.Parent != "" {
			parent = sql.NullString{String: edge.Parent, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO edges (run_id, position, url, parent) VALUES (?, ?, ?, ?)`,
			result.RunID, i, edge.URL, parent,
		)
		if err != nil {
			return fmt.Errorf("failed to save edge %s: %w", edge.URL, err)
		}
	}

	for _, f := range result.Failures {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, kind, url, action, message, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
			result.RunID, f.Kind.String(), f.URL, f.Action, f.Message, formatTimestamp(f.Time),
		)
		if err != nil {
			return fmt.Errorf("failed to save failure: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by its run ID.
func (cdb *CrawlDB) GetRun(ctx context.Context, runID string) (*model.CrawlResult, error) {
	return cdb.queryRun(ctx, `SELECT result_json FROM runs WHERE run_id = ?`, runID)
}

// LatestRun retrieves the most recent run of an origin.
func (cdb *CrawlDB) LatestRun(ctx context.Context, origin string) (*model.CrawlResult, error) {
	return cdb.queryRun(ctx, `
	SELECT result_json FROM runs
	WHERE origin = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`, origin)
}

// queryRun decodes the result_json column of the single row query selects.
func (cdb *CrawlDB) queryRun(ctx context.Context, query string, args ...any) (*model.CrawlResult, error) {
	var resultJSON string
	err := cdb.db.QueryRowContext(ctx, query, args...).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var result model.CrawlResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &result, nil
}

// ListOrigins returns every origin with at least one stored run.
func (cdb *CrawlDB) ListOrigins(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT origin FROM runs ORDER BY origin`)
	if err != nil {
		return nil, fmt.Errorf("failed to list origins: %w", err)
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var origin string
		if err := rows.Scan(&origin); err != nil {
			return nil, fmt.Errorf("failed to scan origin: %w", err)
		}
		origins = append(origins, origin)
	}

	return origins, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// It is used for listing history without loading the full result.
type RunMetadata struct {
	RunID        string
	Origin       string
	StartURL     string
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       string
	VisitedCount int
	ActionCount  int
	FailureCount int
}

// Duration returns how long the run took.
func (m RunMetadata) Duration() time.Duration {
	if m.StartedAt.IsZero() || m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}

// ListRuns returns run metadata for an origin, newest first.
// An empty origin lists runs of every origin.
func (cdb *CrawlDB) ListRuns(ctx context.Context, origin string) ([]RunMetadata, error) {
	query := `
	SELECT run_id, origin, start_url, started_at, finished_at, status,
		visited_count, action_count, failure_count
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0)

	if origin != "" {
		query += " AND origin = ?"
		args = append(args, origin)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var started, finished string

		err := rows.Scan(
			&meta.RunID,
			&meta.Origin,
			&meta.StartURL,
			&started,
			&finished,
			&meta.Status,
			&meta.VisitedCount,
			&meta.ActionCount,
			&meta.FailureCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(started)
		meta.FinishedAt = parseTimestamp(finished)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// URLSighting is one stored run that visited a URL.
type URLSighting struct {
	RunID     string
	StartedAt time.Time
	Parent    string
	Position  int
}

// URLHistory returns the runs that visited url, newest first, with the
// parent that led to it in each run.
func (cdb *CrawlDB) URLHistory(ctx context.Context, url string) ([]URLSighting, error) {
	query := `
	SELECT e.run_id, r.started_at, e.parent, e.position
	FROM edges e
	JOIN runs r ON r.run_id = e.run_id
	WHERE e.url = ?
	ORDER BY r.started_at DESC, r.id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, url)
	if err != nil {
		return nil, fmt.Errorf("failed to query url history: %w", err)
	}
	defer rows.Close()

	var results []URLSighting
	for rows.Next() {
		var s URLSighting
		var started string
		var parent sql.NullString

		if err := rows.Scan(&s.RunID, &started, &parent, &s.Position); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		s.Parent = parent.String
		results = append(results, s)
	}

	return results, rows.Err()
}

// FailureCounts returns the number of failures per kind name for a run.
func (cdb *CrawlDB) FailureCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM failures WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan failure count: %w", err)
		}
		counts[kind] = n
	}

	return counts, rows.Err()
}

// storedTimeFormat is fixed width so text ordering matches time ordering.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimeFormat)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a stored timestamp, returning zero time on failure.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

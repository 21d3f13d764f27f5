// Package store archives finished runs and their records in SQLite so price
// history can be queried across runs. The text report stays the primary
// output; the archive is optional.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/use-agent/pricewatch/models"
)

// FileName is the database file inside the archive directory.
const FileName = "pricewatch.db"

// History is the SQLite run archive.
type History struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the archive in dir.
func Open(dir string) (*History, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	dbPath := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}

	h := &History{db: db, dbPath: dbPath}
	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create tables: %w", err)
	}
	return h, nil
}

// Path returns the database file path.
func (h *History) Path() string { return h.dbPath }

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		report_path TEXT NOT NULL,
		mode TEXT NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		summary_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		seq INTEGER NOT NULL,
		captured_at TEXT NOT NULL,
		site TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		price REAL,
		currency TEXT NOT NULL,
		url TEXT NOT NULL,
		raw_price TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, seq);
	CREATE INDEX IF NOT EXISTS idx_records_url ON records(url);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run summary and its records in one transaction.
func (h *History) SaveRun(ctx context.Context, summary models.RunSummary, recs []models.ProductRecord) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("store: serialize summary: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, started_at, finished_at, report_path, mode, cancelled, summary_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		finished_at = excluded.finished_at,
		cancelled = excluded.cancelled,
		summary_json = excluded.summary_json
	`,
		summary.RunID,
		formatTime(summary.StartedAt),
		formatTime(summary.FinishedAt),
		summary.ReportPath,
		summary.Mode,
		boolToInt(summary.Cancelled),
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ?`, summary.RunID); err != nil {
		return fmt.Errorf("store: clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO records (run_id, seq, captured_at, site, name, status, price, currency, url, raw_price)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	for i, rec := range recs {
		var price sql.NullFloat64
		if rec.Price != nil {
			price = sql.NullFloat64{Float64: *rec.Price, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			summary.RunID, i, formatTime(rec.CapturedAt), rec.Site, rec.Name,
			string(rec.Status), price, rec.Currency, rec.URL, rec.RawPrice,
		); err != nil {
			return fmt.Errorf("store: insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Records returns the records of a run in report order.
func (h *History) Records(ctx context.Context, runID string) ([]models.ProductRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT captured_at, site, name, status, price, currency, url, raw_price
	FROM records WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query records: %w", err)
	}
	defer rows.Close()

	var out []models.ProductRecord
	for rows.Next() {
		var (
			capturedAt, status string
			price              sql.NullFloat64
			rec                models.ProductRecord
		)
		if err := rows.Scan(&capturedAt, &rec.Site, &rec.Name, &status, &price, &rec.Currency, &rec.URL, &rec.RawPrice); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		rec.CapturedAt = parseTime(capturedAt)
		rec.Status = models.ParseStatus(status)
		if price.Valid {
			v := price.Float64
			rec.Price = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentRuns returns up to limit run summaries, newest first.
func (h *History) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT summary_json FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunSummary
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		var s models.RunSummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("store: decode run: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PricePoint is one archived observation of a product URL.
type PricePoint struct {
	CapturedAt time.Time
	Price      *float64
	Currency   string
	Status     models.Status
}

// PriceHistory returns every archived observation of url, oldest first.
func (h *History) PriceHistory(ctx context.Context, url string) ([]PricePoint, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT captured_at, price, currency, status FROM records
	WHERE url = ? ORDER BY captured_at
	`, url)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var (
			capturedAt, status string
			price              sql.NullFloat64
			p                  PricePoint
		)
		if err := rows.Scan(&capturedAt, &price, &p.Currency, &status); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		p.CapturedAt = parseTime(capturedAt)
		p.Status = models.ParseStatus(status)
		if price.Valid {
			v := price.Float64
			p.Price = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// timeLayout has fixed-width fractions so stored values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

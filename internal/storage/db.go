package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"salesboard/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "storage: create db dir")
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "storage: open")
	}
	// month ingestions store their parses concurrently
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "storage: set wal")
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "storage: init schema")
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS parse_cache (
  path TEXT NOT NULL,
  month TEXT NOT NULL,
  modTime TEXT NOT NULL,
  size INTEGER NOT NULL,
  lines INTEGER NOT NULL,
  recordsJson TEXT NOT NULL,
  skippedJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(path, month)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  outcome TEXT NOT NULL,
  rowCount INTEGER NOT NULL,
  filesJson TEXT NOT NULL,
  warningsJson TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_traceId ON runs(traceId);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// CachedParse returns the records stored for a file when its modification
// time and size still match; ok is false on any mismatch.
func (d *DB) CachedParse(path string, month internal.Month, modTime time.Time, size int64) (internal.FileReport, bool, error) {
	var (
		storedMod   string
		storedSize  int64
		lines       int
		recordsJSON string
		skippedJSON string
	)
	err := d.conn.QueryRow(`
SELECT modTime, size, lines, recordsJson, skippedJson
FROM parse_cache WHERE path = ? AND month = ?
`, path, string(month)).Scan(&storedMod, &storedSize, &lines, &recordsJSON, &skippedJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.FileReport{}, false, nil
	}
	if err != nil {
		return internal.FileReport{}, false, eris.Wrap(err, "storage: query parse cache")
	}
	if storedMod != formatModTime(modTime) || storedSize != size {
		return internal.FileReport{}, false, nil
	}

	report := internal.FileReport{
		Month:   month,
		Path:    path,
		Status:  internal.FileCached,
		Lines:   lines,
		ModTime: modTime,
		Size:    size,
	}
	if err := json.Unmarshal([]byte(recordsJSON), &report.Records); err != nil {
		return internal.FileReport{}, false, eris.Wrap(err, "storage: decode cached records")
	}
	if err := json.Unmarshal([]byte(skippedJSON), &report.Skipped); err != nil {
		return internal.FileReport{}, false, eris.Wrap(err, "storage: decode cached skip counts")
	}
	return report, true, nil
}

func (d *DB) StoreParse(report internal.FileReport) error {
	recordsJSON, err := json.Marshal(report.Records)
	if err != nil {
		return eris.Wrap(err, "storage: encode records")
	}
	skippedJSON, err := json.Marshal(report.Skipped)
	if err != nil {
		return eris.Wrap(err, "storage: encode skip counts")
	}
	_, err = d.conn.Exec(`
INSERT INTO parse_cache (path, month, modTime, size, lines, recordsJson, skippedJson)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path, month) DO UPDATE SET
  modTime=excluded.modTime,
  size=excluded.size,
  lines=excluded.lines,
  recordsJson=excluded.recordsJson,
  skippedJson=excluded.skippedJson,
  createdAt=CURRENT_TIMESTAMP
`, report.Path, string(report.Month), formatModTime(report.ModTime), report.Size, report.Lines, string(recordsJSON), string(skippedJSON))
	if err != nil {
		return eris.Wrap(err, "storage: store parse cache")
	}
	return nil
}

func (d *DB) ClearParseCache() error {
	_, err := d.conn.Exec(`DELETE FROM parse_cache`)
	return err
}

type RunRow struct {
	ID        int
	TraceID   string
	Outcome   string
	RowCount  int
	CreatedAt string
}

func (d *DB) InsertRun(ds internal.Dataset, timings map[string]float64) error {
	filesJSON, err := json.Marshal(ds.Files)
	if err != nil {
		return eris.Wrap(err, "storage: encode run files")
	}
	warningsJSON, err := json.Marshal(ds.Warnings)
	if err != nil {
		return eris.Wrap(err, "storage: encode run warnings")
	}
	timingsJSON, err := json.Marshal(timings)
	if err != nil {
		return eris.Wrap(err, "storage: encode run timings")
	}
	_, err = d.conn.Exec(`
INSERT INTO runs (traceId, outcome, rowCount, filesJson, warningsJson, timingsJson)
VALUES (?, ?, ?, ?, ?, ?)
`, ds.TraceID, string(ds.Outcome), len(ds.Rows), string(filesJSON), string(warningsJSON), string(timingsJSON))
	if err != nil {
		return eris.Wrap(err, "storage: insert run")
	}
	return nil
}

func (d *DB) ListRuns(limit int) ([]RunRow, error) {
	rows, err := d.conn.Query(`
SELECT id, traceId, outcome, rowCount, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list runs")
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.TraceID, &r.Outcome, &r.RowCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func formatModTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

package storage

import (
	"path/filepath"
	"testing"
	"time"

	"salesboard/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestParseCacheRoundTrip(t *testing.T) {
	db := openTestDB(t)
	mod := time.Date(2024, 11, 30, 10, 0, 0, 0, time.UTC)

	report := internal.FileReport{
		Month:   internal.MonthNOV,
		Path:    "/data/NOV.csv",
		Status:  internal.FileOK,
		Lines:   42,
		Records: []internal.ParsedRecord{{City: "SOUSA", Product: "ACM", Month: internal.MonthNOV, Qty: 1.5, Value: 10.25}},
		Skipped: map[internal.SkipReason]int{internal.SkipNoFormat: 3},
		ModTime: mod,
		Size:    1024,
	}
	if err := db.StoreParse(report); err != nil {
		t.Fatal(err)
	}

	got, ok, err := db.CachedParse(report.Path, report.Month, mod, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Status != internal.FileCached || got.Lines != 42 {
		t.Fatalf("unexpected report: %+v", got)
	}
	if len(got.Records) != 1 || got.Records[0] != report.Records[0] {
		t.Fatalf("records got %+v want %+v", got.Records, report.Records)
	}
	if got.Skipped[internal.SkipNoFormat] != 3 {
		t.Fatalf("skipped got %v", got.Skipped)
	}
}

func TestParseCacheMisses(t *testing.T) {
	db := openTestDB(t)
	mod := time.Date(2024, 11, 30, 10, 0, 0, 0, time.UTC)
	report := internal.FileReport{Month: internal.MonthAGO, Path: "/data/AGO.csv", ModTime: mod, Size: 10}
	if err := db.StoreParse(report); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name  string
		path  string
		month internal.Month
		mod   time.Time
		size  int64
	}{
		{name: "unknown path", path: "/data/SET.csv", month: internal.MonthAGO, mod: mod, size: 10},
		{name: "other month", path: report.Path, month: internal.MonthSET, mod: mod, size: 10},
		{name: "modified", path: report.Path, month: internal.MonthAGO, mod: mod.Add(time.Second), size: 10},
		{name: "resized", path: report.Path, month: internal.MonthAGO, mod: mod, size: 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok, err := db.CachedParse(tc.path, tc.month, tc.mod, tc.size)
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Fatal("expected cache miss")
			}
		})
	}

	if err := db.ClearParseCache(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.CachedParse(report.Path, report.Month, mod, 10); ok {
		t.Fatal("expected miss after clear")
	}
}

func TestRunsAndMetadata(t *testing.T) {
	db := openTestDB(t)

	for _, id := range []string{"a", "b"} {
		ds := internal.Dataset{TraceID: id, Outcome: internal.OutcomeOK, Rows: make([]internal.ConsolidatedRow, 3)}
		if err := db.InsertRun(ds, map[string]float64{"totalMs": 1}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := db.ListRuns(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].TraceID != "b" || runs[0].RowCount != 3 || runs[0].Outcome != "ok" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	missing, err := db.GetMetadata("watch.last_fingerprint")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("expected nil, got %q", *missing)
	}
	if err := db.SetMetadata("watch.last_fingerprint", "abc"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("watch.last_fingerprint", "def"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMetadata("watch.last_fingerprint")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != "def" {
		t.Fatalf("got %v want def", got)
	}
}

func TestParseCacheRejectsCorruptSkipCounts(t *testing.T) {
	db := openTestDB(t)
	mod := time.Date(2024, 11, 30, 10, 0, 0, 0, time.UTC)
	report := internal.FileReport{Month: internal.MonthOUT, Path: "/data/OUT.csv", ModTime: mod, Size: 10}
	if err := db.StoreParse(report); err != nil {
		t.Fatal(err)
	}
	if _, err := db.conn.Exec(`UPDATE parse_cache SET skippedJson = '{' WHERE path = ?`, report.Path); err != nil {
		t.Fatal(err)
	}

	_, ok, err := db.CachedParse(report.Path, report.Month, mod, 10)
	if err == nil || ok {
		t.Fatalf("expected decode error, got ok=%v err=%v", ok, err)
	}
}

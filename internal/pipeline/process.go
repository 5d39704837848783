package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salesboard/internal"
	"salesboard/internal/config"
	"salesboard/internal/storage"
)

type ProcessingService struct {
	db  *storage.DB
	cfg config.Config

	skipRunLog bool

	mu   sync.Mutex
	memo map[internal.Month]memoEntry
}

// memoEntry holds the last parse of a month's file; a rewrite or a switch to
// another candidate replaces it.
type memoEntry struct {
	path    string
	modTime time.Time
	size    int64
	report  internal.FileReport
}

// NewProcessingService wires the pipeline. db may be nil, in which case
// parsed files are only memoized in process and runs are not recorded.
func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, memo: map[internal.Month]memoEntry{}}
}

// WithoutRunLog stops Consolidate from appending to the run log; the HTTP
// feed consolidates on every request.
func (s *ProcessingService) WithoutRunLog() *ProcessingService {
	s.skipRunLog = true
	return s
}

func (s *ProcessingService) Window() internal.Window {
	return s.cfg.Sources.Window()
}

// Consolidate ingests every month of the window in parallel, waits for all of
// them, then merges, filters and scores the rows. Missing or unreadable files
// degrade the dataset instead of failing it; the returned error is reserved
// for cancellation.
func (s *ProcessingService) Consolidate(ctx context.Context) (internal.Dataset, error) {
	start := time.Now()
	window := s.Window()
	ds := internal.Dataset{TraceID: uuid.NewString(), Window: window, Outcome: internal.OutcomeOK}

	reports := make([]internal.FileReport, len(window))
	var wg sync.WaitGroup
	for i, month := range window {
		wg.Add(1)
		go func(i int, month internal.Month) {
			defer wg.Done()
			if ctx.Err() != nil {
				reports[i] = internal.FileReport{Month: month, Status: internal.FileUnreadable}
				return
			}
			reports[i] = s.ingestMonth(month)
		}(i, month)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return internal.Dataset{}, err
	}
	parsedAt := time.Now()

	aggregates := make([]internal.MonthlyAggregate, 0, len(reports))
	totalRecords := 0
	for _, report := range reports {
		ds.Files = append(ds.Files, report)
		if w, ok := warningFor(report); ok {
			ds.Warnings = append(ds.Warnings, w)
			zap.L().Warn("consolidate: month unavailable",
				zap.String("month", string(w.Month)),
				zap.String("kind", string(w.Kind)),
				zap.String("path", report.Path))
		}
		totalRecords += len(report.Records)
		aggregates = append(aggregates, ConsolidateMonth(report.Month, report.Records))
	}

	if totalRecords == 0 {
		ds.Outcome = internal.OutcomeNoUsableData
		s.recordRun(ds, start, parsedAt)
		return ds, nil
	}

	merged := MergeMonths(window, aggregates)
	rows := NewCityFilter(s.cfg.Sources.Cities).Apply(merged)
	if len(rows) == 0 {
		ds.Outcome = internal.OutcomeNoTargetCities
		s.recordRun(ds, start, parsedAt)
		return ds, nil
	}
	ApplyMetrics(rows)
	ds.Rows = rows

	zap.L().Info("consolidate: done",
		zap.String("trace_id", ds.TraceID),
		zap.String("latest", string(window.Latest())),
		zap.Int("records", totalRecords),
		zap.Int("merged", len(merged)),
		zap.Int("rows", len(rows)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	s.recordRun(ds, start, parsedAt)
	return ds, nil
}

func (s *ProcessingService) ingestMonth(month internal.Month) internal.FileReport {
	path, ok := s.cfg.Sources.Resolve(s.cfg.DataDir, month)
	if !ok {
		s.forget(month)
		return internal.FileReport{Month: month, Status: internal.FileMissing}
	}

	info, err := os.Stat(path)
	if err != nil {
		s.forget(month)
		return IngestFile(path, month, s.cfg.SourceEncoding)
	}

	s.mu.Lock()
	entry, hit := s.memo[month]
	s.mu.Unlock()
	if hit && entry.path == path && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.report
	}

	if s.db != nil && s.cfg.CacheEnabled {
		report, hit, err := s.db.CachedParse(path, month, info.ModTime(), info.Size())
		if err != nil {
			zap.L().Warn("consolidate: parse cache lookup failed", zap.String("path", path), zap.Error(err))
		}
		if hit {
			s.remember(report)
			return report
		}
	}

	report := IngestFile(path, month, s.cfg.SourceEncoding)
	if !report.Available() {
		s.forget(month)
		return report
	}
	s.remember(report)
	if s.db != nil && s.cfg.CacheEnabled {
		if err := s.db.StoreParse(report); err != nil {
			zap.L().Warn("consolidate: parse cache store failed", zap.String("path", path), zap.Error(err))
		}
	}
	return report
}

// Fingerprint identifies the current state of the source files: which
// candidate backs each month plus its size and modification time. It changes
// whenever a file appears, disappears or is rewritten.
func (s *ProcessingService) Fingerprint() string {
	h := sha256.New()
	for _, month := range s.Window() {
		path, ok := s.cfg.Sources.Resolve(s.cfg.DataDir, month)
		if !ok {
			fmt.Fprintf(h, "%s|missing\n", month)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(h, "%s|%s|unreadable\n", month, path)
			continue
		}
		fmt.Fprintf(h, "%s|%s|%d|%d\n", month, path, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *ProcessingService) remember(report internal.FileReport) {
	s.mu.Lock()
	s.memo[report.Month] = memoEntry{path: report.Path, modTime: report.ModTime, size: report.Size, report: report}
	s.mu.Unlock()
}

func (s *ProcessingService) forget(month internal.Month) {
	s.mu.Lock()
	delete(s.memo, month)
	s.mu.Unlock()
}

func (s *ProcessingService) recordRun(ds internal.Dataset, start, parsedAt time.Time) {
	if s.db == nil || s.skipRunLog {
		return
	}
	timings := map[string]float64{
		"parseMs": float64(parsedAt.Sub(start).Milliseconds()),
		"totalMs": float64(time.Since(start).Milliseconds()),
	}
	if err := s.db.InsertRun(ds, timings); err != nil {
		zap.L().Warn("consolidate: run log failed", zap.String("trace_id", ds.TraceID), zap.Error(err))
	}
}

func warningFor(report internal.FileReport) (internal.MonthWarning, bool) {
	switch report.Status {
	case internal.FileMissing:
		return internal.MonthWarning{
			Month:   report.Month,
			Kind:    internal.FileMissing,
			Message: fmt.Sprintf("file for %s not found", report.Month),
		}, true
	case internal.FileUnreadable:
		return internal.MonthWarning{
			Month:   report.Month,
			Kind:    internal.FileUnreadable,
			Message: fmt.Sprintf("file for %s could not be read: %s", report.Month, report.Path),
		}, true
	default:
		return internal.MonthWarning{}, false
	}
}

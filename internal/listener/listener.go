package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"salesboard/internal"
	"salesboard/internal/config"
	"salesboard/internal/pipeline"
	"salesboard/internal/storage"
)

const fingerprintKey = "watch.last_fingerprint"

// Service polls the source files and re-runs the consolidation whenever their
// fingerprint changes.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	now       func() time.Time
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{
		db:        db,
		cfg:       cfg,
		processor: pipeline.NewProcessingService(db, cfg),
		now:       time.Now,
	}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.WatchIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			zap.L().Error("watch: cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle consolidates once if the sources changed since the last recorded
// run. It reports whether a new dataset was produced.
func (s *Service) RunCycle(ctx context.Context) (bool, error) {
	fingerprint := s.processor.Fingerprint()
	last, err := s.db.GetMetadata(fingerprintKey)
	if err != nil {
		return false, err
	}
	if last != nil && *last == fingerprint {
		zap.L().Debug("watch: sources unchanged")
		return false, nil
	}

	ds, err := s.processor.Consolidate(ctx)
	if err != nil {
		return false, err
	}

	if s.cfg.WatchAutoExport && ds.Outcome == internal.OutcomeOK {
		outputPath := filepath.Join(s.cfg.OutputDir, "watch", exportName(ds, s.now()))
		if err := pipeline.ExportDatasetToXLSX(ds, outputPath); err != nil {
			return false, err
		}
		zap.L().Info("watch: exported", zap.String("path", outputPath))
	}

	if err := s.db.SetMetadata(fingerprintKey, fingerprint); err != nil {
		return false, err
	}

	zap.L().Info("watch: cycle done",
		zap.String("trace_id", ds.TraceID),
		zap.String("outcome", string(ds.Outcome)),
		zap.Int("rows", len(ds.Rows)),
		zap.Int("warnings", len(ds.Warnings)))
	return true, nil
}

func exportName(ds internal.Dataset, at time.Time) string {
	return fmt.Sprintf("consolidated_%s_%s.xlsx", at.UTC().Format("20060102T150405"), ds.TraceID[:8])
}

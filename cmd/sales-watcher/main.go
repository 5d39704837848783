package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"salesboard/internal/config"
	"salesboard/internal/listener"
	"salesboard/internal/logging"
	"salesboard/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	flush, err := logging.Setup(cfg.LogLevel)
	must(err)
	defer flush()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := listener.NewService(db, cfg)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	zap.L().Info("watch: started",
		zap.String("data_dir", cfg.DataDir),
		zap.Int("interval_sec", cfg.WatchIntervalSec),
		zap.Bool("auto_export", cfg.WatchAutoExport))
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

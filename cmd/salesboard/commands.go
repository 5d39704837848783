package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"salesboard/internal"
	"salesboard/internal/api"
	"salesboard/internal/listener"
	"salesboard/internal/pipeline"
)

var (
	runCity   string
	runStatus []string
	runTop    int
	exportOut string
	runsLimit int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consolidate the four months and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ds, err := consolidate(cmd.Context(), pipeline.NewProcessingService(db, cfg))
		if err != nil {
			return err
		}

		rows := ds.Rows
		if runCity != "" {
			rows = pipeline.RowsForCity(rows, runCity)
		}
		statuses := make([]internal.Status, 0, len(runStatus))
		for _, name := range runStatus {
			s, ok := internal.ParseStatus(name)
			if !ok {
				return eris.Errorf("unknown status %q", name)
			}
			statuses = append(statuses, s)
		}
		rows = pipeline.FilterByStatus(rows, statuses...)
		if runTop > 0 {
			rows = pipeline.TopByTotal(rows, runTop)
		}

		printRows(ds.Window, rows)
		printWarnings(ds.Warnings)
		fmt.Printf("run done trace=%s latest=%s rows=%d shown=%d\n", ds.TraceID, ds.Window.Latest(), len(ds.Rows), len(rows))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Consolidate and write the result to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ds, err := consolidate(cmd.Context(), pipeline.NewProcessingService(db, cfg))
		if err != nil {
			return err
		}
		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.OutputDir, "consolidated.xlsx")
		}
		if err := pipeline.ExportDatasetToXLSX(ds, out); err != nil {
			return err
		}
		printWarnings(ds.Warnings)
		fmt.Printf("exported %d rows to %s\n", len(ds.Rows), out)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the consolidated dataset over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		app := fiber.New(fiber.Config{DisableStartupMessage: true})
		h := &api.Handler{Source: pipeline.NewProcessingService(db, cfg).WithoutRunLog(), TopN: cfg.TopN}
		h.RegisterRoutes(app)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		go func() {
			<-ctx.Done()
			_ = app.ShutdownWithTimeout(5 * time.Second)
		}()

		zap.L().Info("serve: listening", zap.String("addr", cfg.HTTPAddr))
		return app.Listen(cfg.HTTPAddr)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-consolidate whenever a source file changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return listener.NewService(db, cfg).Run(ctx)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent consolidation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTRACE\tOUTCOME\tROWS\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", r.ID, r.TraceID, r.Outcome, r.RowCount, r.CreatedAt)
		}
		return w.Flush()
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "cache-clear",
	Short: "Drop every cached parse result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.ClearParseCache(); err != nil {
			return err
		}
		fmt.Println("parse cache cleared")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("salesboard %s (%s)\n", api.Version, runtime.Version())
	},
}

func init() {
	runCmd.Flags().StringVar(&runCity, "city", "", "only rows of this city")
	runCmd.Flags().StringSliceVar(&runStatus, "status", nil, "only rows with these statuses (New,Stopped,Grew,Fell)")
	runCmd.Flags().IntVar(&runTop, "top", 0, "only the N rows with the highest total value")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output xlsx path (default OUTPUT_DIR/consolidated.xlsx)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to list")
}

// consolidate runs the pipeline and turns the two empty outcomes into errors
// so the CLI exits non-zero on them.
func consolidate(ctx context.Context, svc *pipeline.ProcessingService) (internal.Dataset, error) {
	ds, err := svc.Consolidate(ctx)
	if err != nil {
		return ds, err
	}
	if err := ds.Err(); err != nil {
		printWarnings(ds.Warnings)
		if errors.Is(err, internal.ErrNoTargetCities) {
			return ds, eris.Wrap(err, "check the city allow-list in the sources file")
		}
		return ds, err
	}
	return ds, nil
}

func printRows(window internal.Window, rows []internal.ConsolidatedRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"CITY", "PRODUCT"}
	for _, m := range window {
		header = append(header, "VALUE_"+string(m))
	}
	header = append(header, "AVG3", "TOTAL", "STATUS")
	fmt.Fprintln(w, strings.Join(header, "\t")+"\t")

	for _, row := range rows {
		cells := []string{row.City, row.Product}
		for _, v := range row.Value {
			cells = append(cells, fmt.Sprintf("%.2f", v))
		}
		cells = append(cells, fmt.Sprintf("%.2f", row.Avg3Value), fmt.Sprintf("%.2f", row.TotalValue), string(row.Status))
		fmt.Fprintln(w, strings.Join(cells, "\t")+"\t")
	}
	_ = w.Flush()
}

func printWarnings(warnings []internal.MonthWarning) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w.Message)
	}
}

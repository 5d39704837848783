package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"salesboard/internal"
	"salesboard/internal/pipeline"
	"salesboard/internal/util"
)

const (
	Version            = "1.0.0"
	defaultSearchLimit = 20
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Consolidator produces a fresh dataset per call.
type Consolidator interface {
	Consolidate(ctx context.Context) (internal.Dataset, error)
}

// Handler serves the consolidated dataset over HTTP.
type Handler struct {
	Source Consolidator
	TopN   int
}

// ErrorResponse is returned for every non-2xx answer.
type ErrorResponse struct {
	Error    string                  `json:"error"`
	Outcome  internal.Outcome        `json:"outcome,omitempty"`
	TraceID  string                  `json:"traceId,omitempty"`
	Warnings []internal.MonthWarning `json:"warnings,omitempty"`
}

type CityResponse struct {
	TraceID     string                  `json:"traceId"`
	Summary     pipeline.CitySummary    `json:"summary"`
	Rows        []map[string]any        `json:"rows"`
	TopByTotal  []map[string]any        `json:"topByTotal"`
	TopByLatest []map[string]any        `json:"topByLatest"`
	Statuses    map[internal.Status]int `json:"statuses"`
}

type SearchResponse struct {
	Query string           `json:"query"`
	Hits  []map[string]any `json:"hits"`
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Get("/api/dataset", h.HandleDataset)
	app.Get("/api/cities", h.HandleCities)
	app.Get("/api/cities/:city", h.HandleCity)
	app.Get("/api/products", h.HandleProducts)
	app.Get("/api/export.xlsx", h.HandleExport)
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": Version})
}

// HandleDataset returns the consolidated rows, optionally narrowed by
// ?city= and a comma separated ?status= list.
func (h *Handler) HandleDataset(c *fiber.Ctx) error {
	ds, ok, err := h.load(c)
	if !ok {
		return err
	}

	if city := strings.TrimSpace(c.Query("city")); city != "" {
		ds.Rows = pipeline.RowsForCity(ds.Rows, city)
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	ds.Rows = pipeline.FilterByStatus(ds.Rows, statuses...)
	return c.JSON(ds)
}

func (h *Handler) HandleCities(c *fiber.Ctx) error {
	ds, ok, err := h.load(c)
	if !ok {
		return err
	}

	out := []pipeline.CitySummary{}
	for _, city := range pipeline.Cities(ds.Rows) {
		out = append(out, pipeline.Summarize(city, pipeline.RowsForCity(ds.Rows, city)))
	}
	return c.JSON(out)
}

func (h *Handler) HandleCity(c *fiber.Ctx) error {
	ds, ok, err := h.load(c)
	if !ok {
		return err
	}

	city := util.NormalizeText(c.Params("city"))
	rows := pipeline.RowsForCity(ds.Rows, city)
	if len(rows) == 0 {
		return writeError(c, fiber.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("no rows for city %s", city), TraceID: ds.TraceID})
	}

	statuses := map[internal.Status]int{}
	for _, row := range rows {
		statuses[row.Status]++
	}
	return c.JSON(CityResponse{
		TraceID:     ds.TraceID,
		Summary:     pipeline.Summarize(city, rows),
		Rows:        columns(ds.Window, rows),
		TopByTotal:  columns(ds.Window, pipeline.TopByTotal(rows, h.TopN)),
		TopByLatest: columns(ds.Window, pipeline.TopByLatest(rows, h.TopN)),
		Statuses:    statuses,
	})
}

func (h *Handler) HandleProducts(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return writeError(c, fiber.StatusBadRequest, ErrorResponse{Error: "query parameter q is required"})
	}
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return writeError(c, fiber.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
		}
		limit = parsed
	}

	ds, ok, err := h.load(c)
	if !ok {
		return err
	}

	hits := pipeline.BuildProductIndex(ds.Rows).Search(query, limit)
	out := SearchResponse{Query: query, Hits: make([]map[string]any, 0, len(hits))}
	for _, hit := range hits {
		cols := hit.Row.Columns(ds.Window)
		cols["score"] = hit.Score
		out.Hits = append(out.Hits, cols)
	}
	return c.JSON(out)
}

func (h *Handler) HandleExport(c *fiber.Ctx) error {
	ds, ok, err := h.load(c)
	if !ok {
		return err
	}

	var buf bytes.Buffer
	if err := pipeline.WriteDatasetXLSX(ds, &buf); err != nil {
		zap.L().Error("api: export failed", zap.String("trace_id", ds.TraceID), zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, ErrorResponse{Error: "export failed", TraceID: ds.TraceID})
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="consolidated.xlsx"`)
	return c.Send(buf.Bytes())
}

// load consolidates and maps empty outcomes to HTTP errors. When ok is false
// the response has already been written and err is what the handler returns.
func (h *Handler) load(c *fiber.Ctx) (internal.Dataset, bool, error) {
	ds, err := h.Source.Consolidate(c.UserContext())
	if err != nil {
		zap.L().Error("api: consolidate failed", zap.Error(err))
		return ds, false, writeError(c, fiber.StatusInternalServerError, ErrorResponse{Error: "consolidation failed"})
	}

	switch outcome := ds.Err(); {
	case errors.Is(outcome, internal.ErrNoUsableData):
		return ds, false, writeError(c, fiber.StatusServiceUnavailable, outcomeError(ds, outcome))
	case errors.Is(outcome, internal.ErrNoTargetCities):
		return ds, false, writeError(c, fiber.StatusNotFound, outcomeError(ds, outcome))
	}
	return ds, true, nil
}

func outcomeError(ds internal.Dataset, err error) ErrorResponse {
	return ErrorResponse{Error: err.Error(), Outcome: ds.Outcome, TraceID: ds.TraceID, Warnings: ds.Warnings}
}

func writeError(c *fiber.Ctx, status int, body ErrorResponse) error {
	return c.Status(status).JSON(body)
}

func parseStatuses(raw string) ([]internal.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []internal.Status
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, ok := internal.ParseStatus(part)
		if !ok {
			return nil, eris.Errorf("unknown status %q", part)
		}
		out = append(out, s)
	}
	return out, nil
}

func columns(w internal.Window, rows []internal.ConsolidatedRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Columns(w))
	}
	return out
}

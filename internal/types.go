package internal

import (
	"encoding/json"
	"strings"
	"time"
)

// Month is a window label such as AGO. The window order decides which month
// is M1..M4, never the label itself.
type Month string

const (
	MonthAGO Month = "AGO"
	MonthSET Month = "SET"
	MonthOUT Month = "OUT"
	MonthNOV Month = "NOV"
)

// WindowSize is the number of months compared per row: three trailing months
// plus the most recent one.
const WindowSize = 4

type Window [WindowSize]Month

var DefaultWindow = Window{MonthAGO, MonthSET, MonthOUT, MonthNOV}

func (w Window) Index(m Month) int {
	for i, label := range w {
		if label == m {
			return i
		}
	}
	return -1
}

// Latest is M4, the month compared against the trailing average.
func (w Window) Latest() Month {
	return w[WindowSize-1]
}

const UnknownCity = "UNKNOWN"

// RawLine is one decoded source line; it lives only while its file is parsed.
type RawLine struct {
	Path   string
	Month  Month
	LineNo int
	Text   string
}

type ParsedRecord struct {
	City    string  `json:"city"`
	Product string  `json:"product"`
	Month   Month   `json:"month"`
	Qty     float64 `json:"qty"`
	Value   float64 `json:"value"`
}

type RowKey struct {
	City    string
	Product string
}

type Amounts struct {
	Qty   float64
	Value float64
}

type MonthlyAggregate struct {
	Month  Month
	Totals map[RowKey]Amounts
}

type Status string

const (
	StatusNew     Status = "New"
	StatusStopped Status = "Stopped"
	StatusGrew    Status = "Grew"
	StatusFell    Status = "Fell"
)

var Statuses = []Status{StatusNew, StatusStopped, StatusGrew, StatusFell}

// ParseStatus matches a status name case-insensitively.
func ParseStatus(name string) (Status, bool) {
	for _, s := range Statuses {
		if strings.EqualFold(strings.TrimSpace(name), string(s)) {
			return s, true
		}
	}
	return "", false
}

type ConsolidatedRow struct {
	City       string
	Product    string
	Qty        [WindowSize]float64
	Value      [WindowSize]float64
	Avg3Value  float64
	Avg3Qty    float64
	TotalValue float64
	Status     Status
}

// Columns flattens a row into the exported column set, with month columns
// named after the window labels (qty_AGO, value_NOV, ...).
func (r ConsolidatedRow) Columns(w Window) map[string]any {
	out := map[string]any{
		"city":        r.City,
		"product":     r.Product,
		"avg3_value":  r.Avg3Value,
		"avg3_qty":    r.Avg3Qty,
		"total_value": r.TotalValue,
		"status":      string(r.Status),
	}
	for i, m := range w {
		out["qty_"+string(m)] = r.Qty[i]
		out["value_"+string(m)] = r.Value[i]
	}
	return out
}

// ColumnNames lists the exported columns in display order.
func ColumnNames(w Window) []string {
	names := []string{"city", "product"}
	for _, m := range w {
		names = append(names, "qty_"+string(m))
	}
	for _, m := range w {
		names = append(names, "value_"+string(m))
	}
	return append(names, "avg3_value", "avg3_qty", "total_value", "status")
}

type LineKind string

const (
	LineRecord  LineKind = "record"
	LineHeader  LineKind = "header"
	LineNoise   LineKind = "noise"
	LineSkipped LineKind = "skipped"
)

type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipNoFormat    SkipReason = "no_format"
	SkipBadNumber   SkipReason = "bad_number"
	SkipNoAmount    SkipReason = "no_amount"
	SkipShortName   SkipReason = "short_name"
	SkipHeaderNoCty SkipReason = "header_without_city"
)

// LineOutcome is the per-line result of extraction: either a record or the
// reason the line was dropped.
type LineOutcome struct {
	Kind   LineKind
	Record *ParsedRecord
	Reason SkipReason
	// City is set for header lines that resolved a city name.
	City string
}

type FileStatus string

const (
	FileOK         FileStatus = "ok"
	FileCached     FileStatus = "cached"
	FileMissing    FileStatus = "missing"
	FileUnreadable FileStatus = "unreadable"
)

type FileReport struct {
	Month   Month              `json:"month"`
	Path    string             `json:"path"`
	Status  FileStatus         `json:"status"`
	Lines   int                `json:"lines"`
	Records []ParsedRecord     `json:"-"`
	Skipped map[SkipReason]int `json:"skipped,omitempty"`
	ModTime time.Time          `json:"modTime,omitempty"`
	Size    int64              `json:"size,omitempty"`
}

func (r FileReport) Available() bool {
	return r.Status == FileOK || r.Status == FileCached
}

type MonthWarning struct {
	Month   Month      `json:"month"`
	Kind    FileStatus `json:"kind"`
	Message string     `json:"message"`
}

type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeNoUsableData   Outcome = "no_usable_data"
	OutcomeNoTargetCities Outcome = "no_target_cities"
)

type Dataset struct {
	TraceID  string            `json:"traceId"`
	Window   Window            `json:"window"`
	Outcome  Outcome           `json:"outcome"`
	Rows     []ConsolidatedRow `json:"-"`
	Files    []FileReport      `json:"files"`
	Warnings []MonthWarning    `json:"warnings"`
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	type alias Dataset
	rows := make([]map[string]any, 0, len(d.Rows))
	for _, r := range d.Rows {
		rows = append(rows, r.Columns(d.Window))
	}
	return json.Marshal(struct {
		alias
		Rows []map[string]any `json:"rows"`
	}{alias: alias(d), Rows: rows})
}

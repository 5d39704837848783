package pipeline

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"salesboard/internal"
)

const (
	SheetConsolidated = "consolidated"
	SheetCities       = "cities"
	SheetFiles        = "files"
)

// ExportDatasetToXLSX writes the consolidated rows, a per-city summary and the
// per-file ingest report into one workbook at outputPath.
func ExportDatasetToXLSX(ds internal.Dataset, outputPath string) error {
	f, err := buildWorkbook(ds)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	if err := f.SaveAs(outputPath); err != nil {
		return eris.Wrapf(err, "export: save %s", outputPath)
	}
	return nil
}

// WriteDatasetXLSX streams the same workbook to w.
func WriteDatasetXLSX(ds internal.Dataset, w io.Writer) error {
	f, err := buildWorkbook(ds)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func buildWorkbook(ds internal.Dataset) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), SheetConsolidated); err != nil {
		_ = f.Close()
		return nil, eris.Wrap(err, "export: rename sheet")
	}
	for _, name := range []string{SheetCities, SheetFiles} {
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, eris.Wrapf(err, "export: create sheet %s", name)
		}
	}

	columns := internal.ColumnNames(ds.Window)
	writeRow(f, SheetConsolidated, 1, toAny(columns))
	for i, row := range ds.Rows {
		values := row.Columns(ds.Window)
		line := make([]any, len(columns))
		for c, name := range columns {
			line[c] = values[name]
		}
		writeRow(f, SheetConsolidated, i+2, line)
	}

	header := []any{"city"}
	for _, m := range ds.Window {
		header = append(header, "value_"+string(m))
	}
	header = append(header, "avg3_value", "delta", "rows")
	writeRow(f, SheetCities, 1, header)
	for i, city := range Cities(ds.Rows) {
		s := Summarize(city, RowsForCity(ds.Rows, city))
		line := []any{s.City}
		for _, v := range s.Value {
			line = append(line, v)
		}
		line = append(line, s.Avg3, s.Delta, s.Rows)
		writeRow(f, SheetCities, i+2, line)
	}

	writeRow(f, SheetFiles, 1, []any{"month", "path", "status", "lines", "records", "skipped"})
	for i, file := range ds.Files {
		skipped := 0
		for _, n := range file.Skipped {
			skipped += n
		}
		writeRow(f, SheetFiles, i+2, []any{string(file.Month), file.Path, string(file.Status), file.Lines, len(file.Records), skipped})
	}
	return f, nil
}

func writeRow(f *excelize.File, sheet string, r int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, r)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

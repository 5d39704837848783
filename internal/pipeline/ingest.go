package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"salesboard/internal"
)

const (
	EncodingLatin1  = "latin1"
	EncodingWin1252 = "windows-1252"
	EncodingUTF8    = "utf-8"
)

// ClassifyLine decides what a single source line is: a city header, noise, a
// data record or a dropped line with its reason.
func ClassifyLine(line string) internal.LineOutcome {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return internal.LineOutcome{Kind: internal.LineNoise}
	}
	if city, ok := DetectCityHeader(trimmed); ok {
		return internal.LineOutcome{Kind: internal.LineHeader, City: city}
	}
	if IsNoiseLine(trimmed) {
		return internal.LineOutcome{Kind: internal.LineNoise}
	}
	return ExtractRecord(trimmed)
}

// IngestFile reads one month's extract. A missing or unreadable file yields
// an empty report with the matching status instead of an error.
func IngestFile(path string, month internal.Month, encodingName string) internal.FileReport {
	report := internal.FileReport{Month: month, Path: path, Status: internal.FileOK}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			report.Status = internal.FileMissing
		} else {
			report.Status = internal.FileUnreadable
		}
		return report
	}
	if info.IsDir() {
		report.Status = internal.FileUnreadable
		return report
	}
	report.ModTime = info.ModTime()
	report.Size = info.Size()

	blob, err := os.ReadFile(path)
	if err != nil {
		zap.L().Warn("ingest: read failed", zap.String("path", path), zap.Error(err))
		report.Status = internal.FileUnreadable
		return report
	}
	text, err := DecodeText(blob, encodingName)
	if err != nil {
		zap.L().Warn("ingest: decode failed", zap.String("path", path), zap.Error(err))
		report.Status = internal.FileUnreadable
		return report
	}

	records, lines, skipped := IngestText(text, path, month)
	report.Records = records
	report.Lines = lines
	report.Skipped = skipped
	return report
}

// IngestText walks decoded text line by line, carrying the city in effect
// from the last header onto every record below it.
func IngestText(text, path string, month internal.Month) ([]internal.ParsedRecord, int, map[internal.SkipReason]int) {
	lines := splitLines(text)
	records := make([]internal.ParsedRecord, 0, len(lines)/2)
	skipped := map[internal.SkipReason]int{}

	city := ""
	for i, line := range lines {
		raw := internal.RawLine{Path: path, Month: month, LineNo: i + 1, Text: line}
		outcome := ClassifyLine(raw.Text)
		switch outcome.Kind {
		case internal.LineHeader:
			if outcome.City == "" {
				skipped[internal.SkipHeaderNoCty]++
				continue
			}
			city = outcome.City
		case internal.LineSkipped:
			skipped[outcome.Reason]++
			zap.L().Debug("ingest: line skipped",
				zap.String("month", string(raw.Month)),
				zap.Int("line", raw.LineNo),
				zap.String("reason", string(outcome.Reason)))
		case internal.LineRecord:
			rec := *outcome.Record
			rec.City = city
			if rec.City == "" {
				rec.City = internal.UnknownCity
			}
			rec.Month = month
			records = append(records, rec)
		}
	}
	return records, len(lines), skipped
}

// DecodeText converts a legacy single-byte extract to UTF-8. Bytes the
// codepage cannot map become U+FFFD instead of failing the file.
func DecodeText(blob []byte, encodingName string) (string, error) {
	var dec *encoding.Decoder
	switch strings.ToLower(strings.TrimSpace(encodingName)) {
	case "", EncodingLatin1, "iso-8859-1":
		dec = charmap.ISO8859_1.NewDecoder()
	case EncodingWin1252, "cp1252":
		dec = charmap.Windows1252.NewDecoder()
	case EncodingUTF8, "utf8":
		dec = unicode.UTF8.NewDecoder()
	default:
		return "", eris.Errorf("ingest: unsupported encoding %q", encodingName)
	}
	out, err := dec.Bytes(blob)
	if err != nil {
		return "", eris.Wrap(err, "ingest: decode")
	}
	return string(out), nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"salesboard/internal"
)

const latin1Extract = "RMOV - Relatorio de vendas\n" +
	"Emiss\xe3o: 01/09/2024\n" +
	"PB,CATOL\xc9 DO ROCHA\n" +
	"\"0123-WIDGET A\",\"\",\"10,50\",\"\",\"\",\"\",\"1.234,56\"\n" +
	"Produto   Qtd   Valor\n" +
	"TOTAL CIDADE   1.234,56\n" +
	"PB SOUSA\n" +
	"ACM BRANCO   UN   2,00   x   300,00   1\n" +
	"linha quebrada\n"

func TestIngestFileLatin1(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "AGO.csv")
	if err := os.WriteFile(path, []byte(latin1Extract), 0o644); err != nil {
		t.Fatal(err)
	}

	report := IngestFile(path, internal.MonthAGO, EncodingLatin1)
	if report.Status != internal.FileOK {
		t.Fatalf("status got %q want %q", report.Status, internal.FileOK)
	}
	if report.Lines != 9 {
		t.Fatalf("lines got %d want 9", report.Lines)
	}
	if len(report.Records) != 2 {
		t.Fatalf("records got %d want 2: %+v", len(report.Records), report.Records)
	}

	first := report.Records[0]
	if first.City != "CATOLE DO ROCHA" || first.Product != "WIDGET A" || first.Month != internal.MonthAGO {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.Qty != 10.5 || first.Value != 1234.56 {
		t.Fatalf("unexpected amounts: %+v", first)
	}

	second := report.Records[1]
	if second.City != "SOUSA" || second.Product != "ACM BRANCO" || second.Qty != 2 || second.Value != 300 {
		t.Fatalf("unexpected second record: %+v", second)
	}

	if report.Skipped[internal.SkipNoFormat] != 1 {
		t.Fatalf("skipped got %v want one no_format", report.Skipped)
	}
	if report.Size == 0 || report.ModTime.IsZero() {
		t.Fatalf("expected file stat in report: %+v", report)
	}
}

func TestIngestFileMissing(t *testing.T) {
	report := IngestFile(filepath.Join(t.TempDir(), "NOV.csv"), internal.MonthNOV, EncodingLatin1)
	if report.Status != internal.FileMissing {
		t.Fatalf("status got %q want %q", report.Status, internal.FileMissing)
	}
	if len(report.Records) != 0 || report.Available() {
		t.Fatalf("missing file must yield no records: %+v", report)
	}
}

func TestIngestFileUnreadable(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "SET.csv")
	if err := os.WriteFile(path, []byte("PB,SOUSA\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if report := IngestFile(path, internal.MonthSET, "ebcdic"); report.Status != internal.FileUnreadable {
		t.Fatalf("unknown encoding: status got %q want %q", report.Status, internal.FileUnreadable)
	}
	if report := IngestFile(tmp, internal.MonthSET, EncodingLatin1); report.Status != internal.FileUnreadable {
		t.Fatalf("directory: status got %q want %q", report.Status, internal.FileUnreadable)
	}
}

func TestIngestTextCityContext(t *testing.T) {
	text := "WIDGET A   UN   1,00   x   10,00   1\r\n" +
		"PB SOUSA\r\n" +
		"WIDGET B   UN   1,00   x   20,00   1\r\n" +
		"PB\r\n" +
		"WIDGET C   UN   1,00   x   30,00   1\r\n" +
		"PB,POMBAL\r\n" +
		"WIDGET D   UN   1,00   x   40,00   1\r\n"

	records, lines, skipped := IngestText(text, "mem", internal.MonthOUT)
	if lines != 7 {
		t.Fatalf("lines got %d want 7", lines)
	}
	wantCities := []string{internal.UnknownCity, "SOUSA", "SOUSA", "POMBAL"}
	if len(records) != len(wantCities) {
		t.Fatalf("records got %d want %d", len(records), len(wantCities))
	}
	for i, want := range wantCities {
		if records[i].City != want {
			t.Fatalf("record %d city got %q want %q", i, records[i].City, want)
		}
		if records[i].Month != internal.MonthOUT {
			t.Fatalf("record %d month got %q", i, records[i].Month)
		}
	}
	if skipped[internal.SkipHeaderNoCty] != 1 {
		t.Fatalf("expected one header without city, got %v", skipped)
	}
}

func TestDecodeText(t *testing.T) {
	cases := []struct {
		name     string
		blob     []byte
		encoding string
		want     string
	}{
		{name: "latin1", blob: []byte("S\xe3o Bento"), encoding: EncodingLatin1, want: "São Bento"},
		{name: "default is latin1", blob: []byte("Pianc\xf3"), encoding: "", want: "Piancó"},
		{name: "windows-1252", blob: []byte("\x93ACM\x94"), encoding: EncodingWin1252, want: "“ACM”"},
		{name: "utf-8", blob: []byte("São Bento"), encoding: EncodingUTF8, want: "São Bento"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeText(tc.blob, tc.encoding)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

package pipeline

import (
	"testing"

	"salesboard/internal"
)

func TestExtractRecord(t *testing.T) {
	cases := []struct {
		name        string
		line        string
		wantProduct string
		wantQty     float64
		wantValue   float64
	}{
		{
			name:        "delimited, name in first column",
			line:        `"0123-WIDGET A","","10,50","","","","1.234,56"`,
			wantProduct: "WIDGET A",
			wantQty:     10.5,
			wantValue:   1234.56,
		},
		{
			name:        "delimited, name in second column",
			line:        `123,ACM BRANCO,"5,00",x,x,x,"250,00"`,
			wantProduct: "ACM BRANCO",
			wantQty:     5,
			wantValue:   250,
		},
		{
			name:        "delimited, numeric second column falls back to first",
			line:        `PARAFUSO 3MM,"1.234","2,00",,,,"40,00"`,
			wantProduct: "PARAFUSO 3MM",
			wantQty:     2,
			wantValue:   40,
		},
		{
			name:        "delimited, value only",
			line:        `CABO FLEX,,3,,,,"99,90"`,
			wantProduct: "CABO FLEX",
			wantQty:     0,
			wantValue:   99.9,
		},
		{
			name:        "aligned",
			line:        "2013-ACM BRANCO   UN   12,00   x   1.500,00   2,5",
			wantProduct: "ACM BRANCO",
			wantQty:     12,
			wantValue:   1500,
		},
		{
			name:        "aligned, zero quantity skipped for the next match",
			line:        "TINTA AZUL   0,00   3,00   x   60,00   1",
			wantProduct: "TINTA AZUL",
			wantQty:     3,
			wantValue:   60,
		},
		{
			name:        "aligned, no quantity token",
			line:        "WIDGET   UN   abc   x   500,00   1",
			wantProduct: "WIDGET",
			wantQty:     0,
			wantValue:   500,
		},
		{
			name:        "aligned, quantity in trailing tokens is ignored",
			line:        "LUVA PVC   UN   x   y   80,00   7,00",
			wantProduct: "LUVA PVC",
			wantQty:     0,
			wantValue:   80,
		},
		{
			name:        "aligned, leading blanks inside quotes are trimmed",
			line:        `"  TINTA  AZUL   0,00   3,00   x   60,00   1"`,
			wantProduct: "TINTA",
			wantQty:     3,
			wantValue:   60,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := ExtractRecord(tc.line)
			if out.Kind != internal.LineRecord || out.Record == nil {
				t.Fatalf("expected record, got %+v", out)
			}
			rec := out.Record
			if rec.Product != tc.wantProduct {
				t.Fatalf("product got %q want %q", rec.Product, tc.wantProduct)
			}
			if rec.Qty != tc.wantQty {
				t.Fatalf("qty got %v want %v", rec.Qty, tc.wantQty)
			}
			if rec.Value != tc.wantValue {
				t.Fatalf("value got %v want %v", rec.Value, tc.wantValue)
			}
		})
	}
}

func TestExtractRecordSkips(t *testing.T) {
	cases := []struct {
		name string
		line string
		want internal.SkipReason
	}{
		{name: "empty line", line: "", want: internal.SkipNoFormat},
		{name: "single token", line: "just some words", want: internal.SkipNoFormat},
		{name: "stray quote merges delimited fields", line: `X,"ab"cd,"1,00",,,,"5,00"`, want: internal.SkipNoFormat},
		{name: "too few aligned tokens", line: "A   B   C", want: internal.SkipNoFormat},
		{name: "delimited without decimal commas", line: "ACM BRANCO,,5,,,,1234", want: internal.SkipNoAmount},
		{name: "delimited zero amounts", line: `ACM BRANCO,,"0,00",,,,"0,00"`, want: internal.SkipNoAmount},
		{name: "malformed quantity", line: `WIDGET X,,"1,2,3",,,,"10,00"`, want: internal.SkipBadNumber},
		{name: "malformed value", line: "WIDGET   UN   1,00   x   1,2,3   9", want: internal.SkipBadNumber},
		{name: "name too short after cleaning", line: `"12-AB","","1,00","","","","5,00"`, want: internal.SkipShortName},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := ExtractRecord(tc.line)
			if out.Kind != internal.LineSkipped {
				t.Fatalf("expected skip, got %+v", out)
			}
			if out.Reason != tc.want {
				t.Fatalf("reason got %q want %q", out.Reason, tc.want)
			}
		})
	}
}

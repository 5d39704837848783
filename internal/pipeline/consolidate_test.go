package pipeline

import (
	"testing"

	"salesboard/internal"
	"salesboard/internal/config"
)

func rec(city, product string, month internal.Month, qty, value float64) internal.ParsedRecord {
	return internal.ParsedRecord{City: city, Product: product, Month: month, Qty: qty, Value: value}
}

func TestConsolidateMonthSumsByKey(t *testing.T) {
	agg := ConsolidateMonth(internal.MonthAGO, []internal.ParsedRecord{
		rec("SOUSA", "ACM", internal.MonthAGO, 1, 10),
		rec("SOUSA", "ACM", internal.MonthAGO, 2, 15.5),
		rec("PATOS", "ACM", internal.MonthAGO, 4, 40),
	})

	if len(agg.Totals) != 2 {
		t.Fatalf("keys got %d want 2", len(agg.Totals))
	}
	got := agg.Totals[internal.RowKey{City: "SOUSA", Product: "ACM"}]
	if got.Qty != 3 || got.Value != 25.5 {
		t.Fatalf("got %+v want qty 3 value 25.5", got)
	}
}

func TestMergeMonthsCompleteness(t *testing.T) {
	w := internal.DefaultWindow
	aggregates := []internal.MonthlyAggregate{
		ConsolidateMonth(internal.MonthAGO, []internal.ParsedRecord{rec("SOUSA", "ONLY AGO", internal.MonthAGO, 1, 10)}),
		ConsolidateMonth(internal.MonthSET, nil),
		ConsolidateMonth(internal.MonthOUT, []internal.ParsedRecord{rec("SOUSA", "BOTH", internal.MonthOUT, 2, 20)}),
		ConsolidateMonth(internal.MonthNOV, []internal.ParsedRecord{rec("SOUSA", "BOTH", internal.MonthNOV, 3, 30)}),
	}

	rows := MergeMonths(w, aggregates)
	if len(rows) != 2 {
		t.Fatalf("rows got %d want 2", len(rows))
	}

	// sorted by city then product
	if rows[0].Product != "BOTH" || rows[1].Product != "ONLY AGO" {
		t.Fatalf("unexpected order: %q, %q", rows[0].Product, rows[1].Product)
	}

	only := rows[1]
	if only.Value != [internal.WindowSize]float64{10, 0, 0, 0} || only.Qty != [internal.WindowSize]float64{1, 0, 0, 0} {
		t.Fatalf("unexpected single-month row: %+v", only)
	}
	both := rows[0]
	if both.Value != [internal.WindowSize]float64{0, 0, 20, 30} {
		t.Fatalf("unexpected two-month row: %+v", both)
	}
}

func TestMergeMonthsIgnoresLabelsOutsideWindow(t *testing.T) {
	rows := MergeMonths(internal.DefaultWindow, []internal.MonthlyAggregate{
		ConsolidateMonth("DEZ", []internal.ParsedRecord{rec("SOUSA", "ACM", "DEZ", 1, 10)}),
	})
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestMergeMonthsKeysAreUnique(t *testing.T) {
	records := []internal.ParsedRecord{rec("SOUSA", "ACM", internal.MonthAGO, 1, 1)}
	aggregates := []internal.MonthlyAggregate{
		ConsolidateMonth(internal.MonthAGO, records),
		ConsolidateMonth(internal.MonthSET, []internal.ParsedRecord{rec("SOUSA", "ACM", internal.MonthSET, 1, 1)}),
		ConsolidateMonth(internal.MonthOUT, []internal.ParsedRecord{rec("SOUSA", "ACM", internal.MonthOUT, 1, 1)}),
		ConsolidateMonth(internal.MonthNOV, []internal.ParsedRecord{rec("SOUSA", "ACM", internal.MonthNOV, 1, 1)}),
	}
	rows := MergeMonths(internal.DefaultWindow, aggregates)
	if len(rows) != 1 {
		t.Fatalf("rows got %d want 1", len(rows))
	}
	if rows[0].Value != [internal.WindowSize]float64{1, 1, 1, 1} {
		t.Fatalf("unexpected values: %v", rows[0].Value)
	}
}

func TestCityFilter(t *testing.T) {
	filter := NewCityFilter(config.DefaultCities)

	cases := []struct {
		city string
		want bool
	}{
		{city: "SOUSA", want: true},
		{city: "são bento", want: true},
		{city: "  Catolé do Rocha ", want: true},
		{city: "PIANCÓ", want: true},
		{city: "JOAO PESSOA", want: false},
		{city: internal.UnknownCity, want: false},
		{city: "", want: false},
	}
	for _, tc := range cases {
		if got := filter.Allows(tc.city); got != tc.want {
			t.Fatalf("Allows(%q) got %v want %v", tc.city, got, tc.want)
		}
	}
}

func TestCityFilterApply(t *testing.T) {
	rows := []internal.ConsolidatedRow{
		{City: "SOUSA", Product: "ACM"},
		{City: "JOAO PESSOA", Product: "ACM"},
		{City: "PATOS", Product: ""},
		{City: "POMBAL", Product: "TINTA"},
	}
	got := NewCityFilter([]string{"Sousa", "Pombal", "Patos"}).Apply(rows)
	if len(got) != 2 || got[0].City != "SOUSA" || got[1].City != "POMBAL" {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

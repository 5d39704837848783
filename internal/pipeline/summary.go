package pipeline

import (
	"sort"

	"salesboard/internal"
	"salesboard/internal/util"
)

type CitySummary struct {
	City  string                       `json:"city"`
	Value [internal.WindowSize]float64 `json:"value"`
	Avg3  float64                      `json:"avg3"`
	Delta float64                      `json:"delta"`
	Rows  int                          `json:"rows"`
}

// Cities lists the distinct cities present in the rows, sorted.
func Cities(rows []internal.ConsolidatedRow) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, row := range rows {
		if _, ok := seen[row.City]; ok {
			continue
		}
		seen[row.City] = struct{}{}
		out = append(out, row.City)
	}
	sort.Strings(out)
	return out
}

func RowsForCity(rows []internal.ConsolidatedRow, city string) []internal.ConsolidatedRow {
	norm := util.NormalizeText(city)
	out := []internal.ConsolidatedRow{}
	for _, row := range rows {
		if row.City == norm {
			out = append(out, row)
		}
	}
	return out
}

// Summarize totals a city's rows per month and compares the latest month
// with the mean of the three before it.
func Summarize(city string, rows []internal.ConsolidatedRow) CitySummary {
	s := CitySummary{City: city, Rows: len(rows)}
	for _, row := range rows {
		for m := range row.Value {
			s.Value[m] += row.Value[m]
		}
	}
	for m := 0; m < trailingMonths; m++ {
		s.Avg3 += s.Value[m]
	}
	s.Avg3 /= trailingMonths
	s.Delta = s.Value[trailingMonths] - s.Avg3
	return s
}

func TopByTotal(rows []internal.ConsolidatedRow, n int) []internal.ConsolidatedRow {
	return topBy(rows, n, func(r internal.ConsolidatedRow) float64 { return r.TotalValue })
}

func TopByLatest(rows []internal.ConsolidatedRow, n int) []internal.ConsolidatedRow {
	return topBy(rows, n, func(r internal.ConsolidatedRow) float64 { return r.Value[trailingMonths] })
}

func topBy(rows []internal.ConsolidatedRow, n int, metric func(internal.ConsolidatedRow) float64) []internal.ConsolidatedRow {
	out := append([]internal.ConsolidatedRow(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return metric(out[i]) > metric(out[j]) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// FilterByStatus keeps rows with any of the given statuses. No statuses means
// no filtering.
func FilterByStatus(rows []internal.ConsolidatedRow, statuses ...internal.Status) []internal.ConsolidatedRow {
	if len(statuses) == 0 {
		return rows
	}
	want := map[internal.Status]struct{}{}
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	out := []internal.ConsolidatedRow{}
	for _, row := range rows {
		if _, ok := want[row.Status]; ok {
			out = append(out, row)
		}
	}
	return out
}

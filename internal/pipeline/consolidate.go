package pipeline

import (
	"sort"

	"salesboard/internal"
	"salesboard/internal/util"
)

// ConsolidateMonth sums one month's records per (city, product).
func ConsolidateMonth(month internal.Month, records []internal.ParsedRecord) internal.MonthlyAggregate {
	agg := internal.MonthlyAggregate{Month: month, Totals: map[internal.RowKey]internal.Amounts{}}
	for _, rec := range records {
		key := internal.RowKey{City: rec.City, Product: rec.Product}
		cur := agg.Totals[key]
		cur.Qty += rec.Qty
		cur.Value += rec.Value
		agg.Totals[key] = cur
	}
	return agg
}

// MergeMonths full-outer-joins the monthly aggregates on (city, product).
// Months without an entry for a key stay at zero. Aggregates for labels
// outside the window are ignored. Rows come back sorted by city, then product.
func MergeMonths(window internal.Window, aggregates []internal.MonthlyAggregate) []internal.ConsolidatedRow {
	byKey := map[internal.RowKey]*internal.ConsolidatedRow{}
	for _, agg := range aggregates {
		idx := window.Index(agg.Month)
		if idx < 0 {
			continue
		}
		for key, amounts := range agg.Totals {
			row, ok := byKey[key]
			if !ok {
				row = &internal.ConsolidatedRow{City: key.City, Product: key.Product}
				byKey[key] = row
			}
			row.Qty[idx] += amounts.Qty
			row.Value[idx] += amounts.Value
		}
	}

	out := make([]internal.ConsolidatedRow, 0, len(byKey))
	for _, row := range byKey {
		out = append(out, *row)
	}
	sortRows(out)
	return out
}

func sortRows(rows []internal.ConsolidatedRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].City != rows[j].City {
			return rows[i].City < rows[j].City
		}
		return rows[i].Product < rows[j].Product
	})
}

// CityFilter keeps rows whose city is on the allow-list, comparing
// normalized names on both sides.
type CityFilter struct {
	allowed map[string]struct{}
}

func NewCityFilter(cities []string) *CityFilter {
	f := &CityFilter{allowed: make(map[string]struct{}, len(cities))}
	for _, c := range cities {
		if norm := util.NormalizeText(c); norm != "" {
			f.allowed[norm] = struct{}{}
		}
	}
	return f
}

func (f *CityFilter) Allows(city string) bool {
	_, ok := f.allowed[util.NormalizeText(city)]
	return ok
}

func (f *CityFilter) Apply(rows []internal.ConsolidatedRow) []internal.ConsolidatedRow {
	out := make([]internal.ConsolidatedRow, 0, len(rows))
	for _, row := range rows {
		if row.City == "" || row.Product == "" || !f.Allows(row.City) {
			continue
		}
		out = append(out, row)
	}
	return out
}

package pipeline

import "salesboard/internal"

const trailingMonths = internal.WindowSize - 1

// ApplyMetrics fills the trailing averages, the window total and the status
// of every row in place.
func ApplyMetrics(rows []internal.ConsolidatedRow) {
	for i := range rows {
		row := &rows[i]
		var sumValue, sumQty float64
		for m := 0; m < trailingMonths; m++ {
			sumValue += row.Value[m]
			sumQty += row.Qty[m]
		}
		row.Avg3Value = sumValue / trailingMonths
		row.Avg3Qty = sumQty / trailingMonths
		row.TotalValue = sumValue + row.Value[trailingMonths]
		row.Status = StatusFor(row.Value[trailingMonths], row.Avg3Value)
	}
}

// StatusFor compares the latest month against the trailing average. The
// checks run in order; ties, including no activity at all, end up as Fell.
func StatusFor(latest, avg3 float64) internal.Status {
	switch {
	case latest > 0 && avg3 == 0:
		return internal.StatusNew
	case latest == 0 && avg3 > 0:
		return internal.StatusStopped
	case latest > avg3:
		return internal.StatusGrew
	default:
		return internal.StatusFell
	}
}

package correlator

import (
	"TraceCorrelator/internal/model"
)

// Fold sums flow results in the given order.
func Fold(results []model.FlowResult) model.GlobalTotals {
	var totals model.GlobalTotals
	for _, r := range results {
		totals.Add(r)
	}
	return totals
}

// Merge sums partial totals, e.g. those of disjoint flow partitions.
func Merge(parts ...model.GlobalTotals) model.GlobalTotals {
	var totals model.GlobalTotals
	for _, p := range parts {
		totals.Merge(p)
	}
	return totals
}

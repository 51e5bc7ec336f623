// Package ranking orders snapshot entries by hourly orders.
package ranking

import (
	"cmp"
	"slices"

	"github.com/albapepper/orderpulse/internal/model"
)

// DefaultLimit is the size of the top list in hourly reports.
const DefaultLimit = 3

// TopN returns at most n entries sorted by hourly orders, highest first.
// Equal counts keep their input order. The input is not modified.
func TopN(entries []model.Entry, n int) []model.Entry {
	if n <= 0 || len(entries) == 0 {
		return nil
	}
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b model.Entry) int {
		return cmp.Compare(b.HourlyOrders, a.HourlyOrders)
	})
	return sorted[:min(n, len(sorted))]
}

// Top returns the first entry with the highest hourly count. ok is false
// only for an empty input.
func Top(entries []model.Entry) (top model.Entry, ok bool) {
	for i, e := range entries {
		if i == 0 || e.HourlyOrders > top.HourlyOrders {
			top = e
		}
	}
	return top, len(entries) > 0
}

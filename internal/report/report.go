// Package report renders hourly snapshots as plain-text reports.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/albapepper/orderpulse/internal/model"
	"github.com/albapepper/orderpulse/internal/ranking"
)

// ErrEmptySnapshot is returned when a summary is requested for no entries.
var ErrEmptySnapshot = errors.New("empty snapshot")

const (
	timestampLayout = "02.01.2006 15:04"
	clockLayout     = "15:04"
)

// Totals returns the sums of hourly and daily orders over entries.
func Totals(entries []model.Entry) (hourly, daily int) {
	for _, e := range entries {
		hourly += e.HourlyOrders
		daily += e.DailyOrders
	}
	return hourly, daily
}

// Detailed renders the full hourly report: header, aggregate totals, the
// ranked top list (omitted when empty) and every product.
func Detailed(entries, top []model.Entry, now time.Time) string {
	hourly, daily := Totals(entries)

	var b strings.Builder
	b.WriteString("Order report\n")
	fmt.Fprintf(&b, "Report time: %s\n", now.Format(timestampLayout))
	b.WriteString("Totals:\n\n")
	fmt.Fprintf(&b, "Orders this hour: %d\n", hourly)
	fmt.Fprintf(&b, "Orders today: %d\n\n", daily)

	if len(top) > 0 {
		b.WriteString("Top products this hour:\n")
		for i, e := range top {
			fmt.Fprintf(&b, "%d. %s\n", i+1, e.Line())
		}
		b.WriteString("\n")
	}

	b.WriteString("Per-product breakdown:")
	for _, e := range entries {
		b.WriteString("\n* ")
		b.WriteString(e.Line())
	}
	return b.String()
}

// Summary renders a one-line report with totals and the top product. The top
// product is always named, even when every count is zero.
func Summary(entries []model.Entry, now time.Time) (string, error) {
	top, ok := ranking.Top(entries)
	if !ok {
		return "", ErrEmptySnapshot
	}
	hourly, daily := Totals(entries)
	return fmt.Sprintf("%s | Hour: %d | Day: %d | Top: %s (%d)",
		now.Format(clockLayout), hourly, daily, top.Code, top.HourlyOrders), nil
}

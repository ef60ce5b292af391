// Package trend derives trailing change statistics from a keyword's monthly
// search-volume series.
package trend

import (
	"math"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

const (
	shortWindow = 4  // points needed for the 3-month change and its average
	longWindow  = 12 // points needed for the 12-month change and its average
)

// Derived holds the change metrics for one series. Nil means there was not
// enough history or the comparison value was zero.
type Derived struct {
	ThreeMonthChange     *float64
	TwelveMonthChange    *float64
	AvgThreeMonthChange  *float64
	AvgTwelveMonthChange *float64
	// MonthOverMonth has len(series)-1 entries, each rounded to two
	// decimals before it feeds the averages; it is not exported.
	MonthOverMonth []*float64
}

// Derive computes the change metrics for a series ordered oldest first.
func Derive(series []int64) Derived {
	n := len(series)
	d := Derived{MonthOverMonth: monthOverMonth(series)}

	if n >= shortWindow {
		d.ThreeMonthChange = roundPtr(percentChange(series[n-shortWindow], series[n-1]))
		d.AvgThreeMonthChange = roundPtr(mean(d.MonthOverMonth[len(d.MonthOverMonth)-3:]))
	}
	if n >= longWindow {
		d.TwelveMonthChange = roundPtr(percentChange(series[n-longWindow], series[n-1]))
		d.AvgTwelveMonthChange = roundPtr(mean(d.MonthOverMonth[len(d.MonthOverMonth)-(longWindow-1):]))
	}

	return d
}

func monthOverMonth(series []int64) []*float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]*float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		out[i-1] = roundPtr(percentChange(series[i-1], series[i]))
	}
	return out
}

// percentChange returns nil when from is zero.
func percentChange(from, to int64) *float64 {
	if from == 0 {
		return nil
	}
	v := float64(to-from) / float64(from) * 100
	return &v
}

// mean skips nil entries and is nil when nothing remains.
func mean(values []*float64) *float64 {
	var sum float64
	count := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		count++
	}
	if count == 0 {
		return nil
	}
	m := sum / float64(count)
	return &m
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round2(*v)
	return &r
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Row is a provider record with its derived metrics attached.
type Row struct {
	planner.KeywordMetrics
	Derived Derived
}

// Apply derives metrics for each record, preserving order.
func Apply(records []planner.KeywordMetrics) []Row {
	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row{KeywordMetrics: r, Derived: Derive(r.Series())}
	}
	return rows
}

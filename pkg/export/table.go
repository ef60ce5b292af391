// Package export assembles derived keyword rows into the presentation table
// and serializes it as CSV.
package export

import (
	"sort"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/trend"
)

// Fixed presentation columns, in output order. Month columns follow.
const (
	ColumnKeyword           = "Keyword"
	ColumnVolume            = "Monthly Search Estimated"
	ColumnCompetition       = "Competition Level"
	ColumnBidLow            = "Top of Page Bid Low Range"
	ColumnBidHigh           = "Top of Page Bid High Range"
	ColumnThreeMonthChange  = "3 Month Change"
	ColumnTwelveMonthChange = "12 Month Change"
	ColumnAvgTwelveMonth    = "Average 12 Month Change"
	ColumnAvgThreeMonth     = "Average 3 Month Change"
)

var fixedColumns = []string{
	ColumnKeyword,
	ColumnVolume,
	ColumnCompetition,
	ColumnBidLow,
	ColumnBidHigh,
	ColumnThreeMonthChange,
	ColumnTwelveMonthChange,
	ColumnAvgTwelveMonth,
	ColumnAvgThreeMonth,
}

// FixedColumns returns a copy of the non-month header.
func FixedColumns() []string {
	return append([]string(nil), fixedColumns...)
}

// Table is keyed by keyword. A later row for the same keyword replaces the
// earlier one but keeps its position.
type Table struct {
	rows  []trend.Row
	index map[string]int
}

func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Merge folds fragments into the table in order.
func (t *Table) Merge(fragments ...[]trend.Row) *Table {
	for _, fragment := range fragments {
		for _, row := range fragment {
			if i, ok := t.index[row.Keyword]; ok {
				t.rows[i] = row
				continue
			}
			t.index[row.Keyword] = len(t.rows)
			t.rows = append(t.rows, row)
		}
	}
	return t
}

func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the rows in table order.
func (t *Table) Rows() []trend.Row {
	return append([]trend.Row(nil), t.rows...)
}

func (t *Table) Has(keyword string) bool {
	_, ok := t.index[keyword]
	return ok
}

func (t *Table) Get(keyword string) (trend.Row, bool) {
	i, ok := t.index[keyword]
	if !ok {
		return trend.Row{}, false
	}
	return t.rows[i], true
}

func (t *Table) Keywords() []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Keyword
	}
	return out
}

// MonthColumns returns the union of month labels across all rows, oldest
// first.
func (t *Table) MonthColumns() []string {
	seen := make(map[string]planner.MonthlyVolume)
	for _, r := range t.rows {
		for _, m := range r.MonthlySearchVolumes {
			seen[m.Label()] = m
		}
	}
	months := make([]planner.MonthlyVolume, 0, len(seen))
	for _, m := range seen {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	labels := make([]string, len(months))
	for i, m := range months {
		labels[i] = m.Label()
	}
	return labels
}

// Header is the fixed columns followed by MonthColumns.
func (t *Table) Header() []string {
	return append(FixedColumns(), t.MonthColumns()...)
}

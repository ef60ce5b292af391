package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/trend"
)

// WriteCSV serializes the table with a header row. Missing values are empty
// cells and change percentages carry two decimals.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	months := t.MonthColumns()
	if err := cw.Write(append(FixedColumns(), months...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range t.rows {
		if err := cw.Write(record(row, months)); err != nil {
			return fmt.Errorf("write row %q: %w", row.Keyword, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func record(row trend.Row, months []string) []string {
	out := make([]string, 0, len(fixedColumns)+len(months))
	out = append(out,
		row.Keyword,
		strconv.FormatInt(row.AvgMonthlySearches, 10),
		string(row.Competition),
		strconv.FormatInt(row.LowTopOfPageBidMicros, 10),
		strconv.FormatInt(row.HighTopOfPageBidMicros, 10),
		formatPercent(row.Derived.ThreeMonthChange),
		formatPercent(row.Derived.TwelveMonthChange),
		formatPercent(row.Derived.AvgTwelveMonthChange),
		formatPercent(row.Derived.AvgThreeMonthChange),
	)

	byLabel := make(map[string]int64, len(row.MonthlySearchVolumes))
	for _, m := range row.MonthlySearchVolumes {
		byLabel[m.Label()] = m.Searches
	}
	for _, label := range months {
		if v, ok := byLabel[label]; ok {
			out = append(out, strconv.FormatInt(v, 10))
		} else {
			out = append(out, "")
		}
	}
	return out
}

func formatPercent(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// ReadCSV parses a file produced by WriteCSV back into a table. The
// month-over-month series is not part of the export and stays empty.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewTable(), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < len(fixedColumns) {
		return nil, fmt.Errorf("header has %d columns, need at least %d", len(header), len(fixedColumns))
	}
	for i, name := range fixedColumns {
		if header[i] != name {
			return nil, fmt.Errorf("column %d is %q, expected %q", i, header[i], name)
		}
	}

	months := make([]planner.MonthlyVolume, 0, len(header)-len(fixedColumns))
	for _, label := range header[len(fixedColumns):] {
		year, month, ok := planner.ParseMonthLabel(label)
		if !ok {
			return nil, fmt.Errorf("unrecognised month column %q", label)
		}
		months = append(months, planner.MonthlyVolume{Year: year, Month: month})
	}

	var rows []trend.Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row, err := parseRecord(rec, months)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	return NewTable().Merge(rows), nil
}

func parseRecord(rec []string, months []planner.MonthlyVolume) (trend.Row, error) {
	if len(rec) != len(fixedColumns)+len(months) {
		return trend.Row{}, fmt.Errorf("expected %d fields, got %d", len(fixedColumns)+len(months), len(rec))
	}

	var row trend.Row
	var err error
	row.Keyword = rec[0]
	if row.AvgMonthlySearches, err = parseInt(rec[1]); err != nil {
		return row, fmt.Errorf("%s: %w", ColumnVolume, err)
	}
	row.Competition = planner.ParseCompetition(rec[2])
	if row.LowTopOfPageBidMicros, err = parseInt(rec[3]); err != nil {
		return row, fmt.Errorf("%s: %w", ColumnBidLow, err)
	}
	if row.HighTopOfPageBidMicros, err = parseInt(rec[4]); err != nil {
		return row, fmt.Errorf("%s: %w", ColumnBidHigh, err)
	}

	targets := []**float64{
		&row.Derived.ThreeMonthChange,
		&row.Derived.TwelveMonthChange,
		&row.Derived.AvgTwelveMonthChange,
		&row.Derived.AvgThreeMonthChange,
	}
	for i, target := range targets {
		if *target, err = parsePercent(rec[5+i]); err != nil {
			return row, fmt.Errorf("%s: %w", fixedColumns[5+i], err)
		}
	}

	for i, m := range months {
		cell := rec[len(fixedColumns)+i]
		if cell == "" {
			continue
		}
		searches, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return row, fmt.Errorf("%s: %w", m.Label(), err)
		}
		m.Searches = searches
		row.MonthlySearchVolumes = append(row.MonthlySearchVolumes, m)
	}

	return row, nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func parsePercent(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// WriteFile writes the CSV to a temporary file next to path and renames it
// into place.
func WriteFile(path string, t *Table) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = WriteCSV(tmp, t); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename export: %w", err)
	}
	return nil
}

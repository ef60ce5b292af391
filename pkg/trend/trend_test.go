package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

func value(t *testing.T, p *float64) float64 {
	t.Helper()
	require.NotNil(t, p)
	return *p
}

func TestDerive_TwelvePointSeries(t *testing.T) {
	d := Derive([]int64{100, 110, 90, 95, 80, 85, 90, 95, 100, 105, 110, 120})

	assert.Equal(t, 20.00, value(t, d.TwelveMonthChange))
	assert.Equal(t, 20.00, value(t, d.ThreeMonthChange))
	assert.Len(t, d.MonthOverMonth, 11)

	// last three deltas: 105/100, 110/105, 120/110
	want3 := Round2((5.0 + Round2(100.0*5/105) + Round2(100.0*10/110)) / 3)
	assert.Equal(t, want3, value(t, d.AvgThreeMonthChange))
	assert.NotNil(t, d.AvgTwelveMonthChange)
}

func TestDerive_AveragesRoundedMonthlyChanges(t *testing.T) {
	// deltas 0.006%, 0.0059996% and 0% round to 0.01, 0.01 and 0 before
	// averaging; the unrounded mean would round to 0.
	d := Derive([]int64{100000, 100006, 100012, 100012})

	require.Len(t, d.MonthOverMonth, 3)
	assert.Equal(t, 0.01, value(t, d.MonthOverMonth[0]))
	assert.Equal(t, 0.01, value(t, d.MonthOverMonth[1]))
	assert.Equal(t, 0.0, value(t, d.MonthOverMonth[2]))
	assert.Equal(t, 0.01, value(t, d.AvgThreeMonthChange))
	assert.Equal(t, 0.01, value(t, d.ThreeMonthChange))
}

func TestDerive_InsufficientHistory(t *testing.T) {
	tests := []struct {
		name   string
		series []int64
	}{
		{"empty", nil},
		{"one point", []int64{10}},
		{"three points", []int64{10, 20, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Derive(tt.series)
			if d.ThreeMonthChange != nil {
				t.Errorf("3-month change should be nil, got %v", *d.ThreeMonthChange)
			}
			if d.AvgThreeMonthChange != nil {
				t.Errorf("avg 3-month change should be nil, got %v", *d.AvgThreeMonthChange)
			}
			if d.TwelveMonthChange != nil || d.AvgTwelveMonthChange != nil {
				t.Error("12-month metrics should be nil")
			}
		})
	}
}

func TestDerive_FourPointsHasShortMetricsOnly(t *testing.T) {
	d := Derive([]int64{100, 100, 100, 150})

	assert.Equal(t, 50.00, value(t, d.ThreeMonthChange))
	assert.Equal(t, Round2(50.0/3), value(t, d.AvgThreeMonthChange))
	assert.Nil(t, d.TwelveMonthChange)
	assert.Nil(t, d.AvgTwelveMonthChange)
}

func TestDerive_ZeroDenominator(t *testing.T) {
	d := Derive([]int64{0, 10, 20, 30, 40, 50, 60, 70, 0, 90, 20, 30})

	assert.Nil(t, d.TwelveMonthChange, "series starts at zero")
	assert.Nil(t, d.ThreeMonthChange, "value 4 points back is zero")
	assert.Nil(t, d.MonthOverMonth[0])
	assert.Nil(t, d.MonthOverMonth[8])
	assert.Equal(t, -100.0, value(t, d.MonthOverMonth[7]))

	// last three deltas: 0->90 is nil, 90->20 and 20->30 are averaged
	assert.Equal(t, Round2((Round2(-100.0*70/90)+50.0)/2), value(t, d.AvgThreeMonthChange))
}

func TestDerive_AllZeroSeries(t *testing.T) {
	d := Derive(make([]int64, 12))

	assert.Nil(t, d.ThreeMonthChange)
	assert.Nil(t, d.TwelveMonthChange)
	assert.Nil(t, d.AvgThreeMonthChange)
	assert.Nil(t, d.AvgTwelveMonthChange)
}

func TestApply(t *testing.T) {
	rows := Apply([]planner.KeywordMetrics{
		{Keyword: "a"},
		{Keyword: "b"},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Keyword)
	assert.Equal(t, "b", rows[1].Keyword)
	assert.Nil(t, rows[0].Derived.ThreeMonthChange)
}

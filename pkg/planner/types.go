package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultMaxKeywordsPerCall is the provider's hard per-request ceiling for
// GenerateKeywordHistoricalMetrics.
const DefaultMaxKeywordsPerCall = 9999

// DefaultLanguageID is the Google Ads language constant for English.
const DefaultLanguageID = "1000"

// Fetcher resolves historical metrics for one batch of keywords.
// Implementations return one record per keyword they could resolve; missing
// keywords are not an error.
type Fetcher interface {
	Fetch(ctx context.Context, keywords []string, geoTargetID, languageID string) ([]KeywordMetrics, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, keywords []string, geoTargetID, languageID string) ([]KeywordMetrics, error)

func (f FetcherFunc) Fetch(ctx context.Context, keywords []string, geoTargetID, languageID string) ([]KeywordMetrics, error) {
	return f(ctx, keywords, geoTargetID, languageID)
}

// Competition is the provider's categorical bidding-competition estimate.
type Competition string

const (
	CompetitionUnspecified Competition = "UNSPECIFIED"
	CompetitionUnknown     Competition = "UNKNOWN"
	CompetitionLow         Competition = "LOW"
	CompetitionMedium      Competition = "MEDIUM"
	CompetitionHigh        Competition = "HIGH"
)

// ParseCompetition maps a provider string to a Competition, defaulting to
// UNKNOWN for anything unrecognised.
func ParseCompetition(s string) Competition {
	switch c := Competition(strings.ToUpper(strings.TrimSpace(s))); c {
	case CompetitionUnspecified, CompetitionLow, CompetitionMedium, CompetitionHigh:
		return c
	default:
		return CompetitionUnknown
	}
}

// MonthlyVolume is one point of a keyword's search-volume time series.
type MonthlyVolume struct {
	Year     int        `json:"year"`
	Month    time.Month `json:"month"`
	Searches int64      `json:"searches"`
}

// Label renders the point as MONTH-YEAR, e.g. "JANUARY-2024".
func (m MonthlyVolume) Label() string {
	return fmt.Sprintf("%s-%d", strings.ToUpper(m.Month.String()), m.Year)
}

// Before orders points chronologically.
func (m MonthlyVolume) Before(other MonthlyVolume) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// KeywordMetrics is one resolved keyword as returned by the provider.
type KeywordMetrics struct {
	Keyword                string          `json:"keyword"`
	AvgMonthlySearches     int64           `json:"avg_monthly_searches"`
	Competition            Competition     `json:"competition"`
	LowTopOfPageBidMicros  int64           `json:"low_top_of_page_bid_micros"`
	HighTopOfPageBidMicros int64           `json:"high_top_of_page_bid_micros"`
	MonthlySearchVolumes   []MonthlyVolume `json:"monthly_search_volumes"`
}

// Series returns the monthly search counts oldest first.
func (k KeywordMetrics) Series() []int64 {
	out := make([]int64, len(k.MonthlySearchVolumes))
	for i, m := range k.MonthlySearchVolumes {
		out[i] = m.Searches
	}
	return out
}

// SortVolumes orders the time series chronologically in place.
func SortVolumes(volumes []MonthlyVolume) {
	sort.SliceStable(volumes, func(i, j int) bool {
		return volumes[i].Before(volumes[j])
	})
}

// ParseMonth accepts provider month names ("JANUARY") and returns the
// matching time.Month.
func ParseMonth(name string) (time.Month, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for m := time.January; m <= time.December; m++ {
		if strings.ToUpper(m.String()) == name {
			return m, true
		}
	}
	return 0, false
}

// ParseMonthLabel is the inverse of MonthlyVolume.Label.
func ParseMonthLabel(label string) (year int, month time.Month, ok bool) {
	idx := strings.LastIndex(label, "-")
	if idx <= 0 {
		return 0, 0, false
	}
	month, ok = ParseMonth(label[:idx])
	if !ok {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(label[idx+1:], "%d", &year); err != nil {
		return 0, 0, false
	}
	return year, month, true
}

package planner

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexInt64 accepts int64 values encoded either as JSON numbers or as
// strings, which is how the REST gateway renders proto int64 fields.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid int64 %q: %w", s, err)
	}
	*f = flexInt64(v)
	return nil
}

type historicalMetricsResponse struct {
	Results []struct {
		Text           string `json:"text"`
		KeywordMetrics *struct {
			AvgMonthlySearches     flexInt64 `json:"avgMonthlySearches"`
			Competition            string    `json:"competition"`
			LowTopOfPageBidMicros  flexInt64 `json:"lowTopOfPageBidMicros"`
			HighTopOfPageBidMicros flexInt64 `json:"highTopOfPageBidMicros"`
			MonthlySearchVolumes   []struct {
				Month           string    `json:"month"`
				Year            flexInt64 `json:"year"`
				MonthlySearches flexInt64 `json:"monthlySearches"`
			} `json:"monthlySearchVolumes"`
		} `json:"keywordMetrics"`
	} `json:"results"`
}

type errorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Errors []struct {
				ErrorCode map[string]string `json:"errorCode"`
				Message   string            `json:"message"`
				Location  struct {
					FieldPathElements []struct {
						FieldName string `json:"fieldName"`
					} `json:"fieldPathElements"`
				} `json:"location"`
			} `json:"errors"`
			RequestID string `json:"requestId"`
		} `json:"details"`
	} `json:"error"`
}

// ResponseParser converts Ads REST payloads into KeywordMetrics and
// ProviderError values.
type ResponseParser struct{}

func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// ParseResponse decodes a successful GenerateKeywordHistoricalMetrics body.
// Results without a keywordMetrics object carry no data and are left out,
// so their keywords count as missing.
func (p *ResponseParser) ParseResponse(body []byte) ([]KeywordMetrics, error) {
	if len(body) == 0 {
		return nil, newProviderError(CodeInternal, "empty response body")
	}

	var resp historicalMetricsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newProviderError(CodeInternal, "failed to decode response: %v (response: %s)", err, truncate(body, 200))
	}

	records := make([]KeywordMetrics, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Text == "" || r.KeywordMetrics == nil {
			continue
		}
		m := r.KeywordMetrics
		record := KeywordMetrics{
			Keyword:                r.Text,
			AvgMonthlySearches:     int64(m.AvgMonthlySearches),
			Competition:            ParseCompetition(m.Competition),
			LowTopOfPageBidMicros:  int64(m.LowTopOfPageBidMicros),
			HighTopOfPageBidMicros: int64(m.HighTopOfPageBidMicros),
			MonthlySearchVolumes:   make([]MonthlyVolume, 0, len(m.MonthlySearchVolumes)),
		}
		for _, v := range m.MonthlySearchVolumes {
			month, ok := ParseMonth(v.Month)
			if !ok {
				continue
			}
			record.MonthlySearchVolumes = append(record.MonthlySearchVolumes, MonthlyVolume{
				Year:     int(v.Year),
				Month:    month,
				Searches: int64(v.MonthlySearches),
			})
		}
		SortVolumes(record.MonthlySearchVolumes)
		records = append(records, record)
	}

	return records, nil
}

// ParseError maps a non-2xx response into a ProviderError. Bodies that are
// not a Google error envelope still yield an error keyed by HTTP status.
func (p *ResponseParser) ParseError(httpStatus int, body []byte) *ProviderError {
	pe := &ProviderError{
		Code:       codeForHTTPStatus(httpStatus),
		HTTPStatus: httpStatus,
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		pe.Message = fmt.Sprintf("unexpected response: %s", truncate(body, 200))
		return pe
	}

	if env.Error.Status != "" {
		pe.Code = env.Error.Status
	}
	pe.Message = env.Error.Message

	for _, d := range env.Error.Details {
		if pe.RequestID == "" {
			pe.RequestID = d.RequestID
		}
		for _, e := range d.Errors {
			fields := make([]string, 0, len(e.Location.FieldPathElements))
			for _, f := range e.Location.FieldPathElements {
				fields = append(fields, f.FieldName)
			}
			detail := ErrorDetail{
				Reason:    reasonOf(e.ErrorCode),
				Message:   e.Message,
				FieldPath: strings.Join(fields, "."),
			}
			if pe.FieldPath == "" {
				pe.FieldPath = detail.FieldPath
			}
			pe.Details = append(pe.Details, detail)
		}
	}
	if pe.Message == "" && len(pe.Details) > 0 {
		pe.Message = pe.Details[0].Message
	}

	return pe
}

// reasonOf flattens {"keywordPlanIdeaError":"URL_NOT_SUPPORTED"} to
// "keywordPlanIdeaError.URL_NOT_SUPPORTED".
func reasonOf(code map[string]string) string {
	for k, v := range code {
		return k + "." + v
	}
	return ""
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}

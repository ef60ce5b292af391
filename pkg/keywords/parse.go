// Package keywords turns raw user input into the normalized keyword list a
// run submits.
package keywords

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxKeywords is the default input cap.
const DefaultMaxKeywords = 200000

var (
	ErrNoKeywords      = errors.New("no keywords provided")
	ErrTooManyKeywords = errors.New("too many keywords")
	ErrNoCountry       = errors.New("no country selected")
)

// InputValidationError is returned for input rejected before any provider
// call is made.
type InputValidationError struct {
	Err    error
	Detail string
}

func (e *InputValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Detail)
}

func (e *InputValidationError) Unwrap() error {
	return e.Err
}

// Parse splits text on newlines and normalizes each keyword: NFC form,
// surrounding whitespace trimmed, inner whitespace collapsed. Empty lines
// and exact duplicates are dropped, first occurrence wins. More than
// maxKeywords distinct keywords is rejected rather than truncated; a
// maxKeywords of zero or less means DefaultMaxKeywords.
func Parse(text string, maxKeywords int) ([]string, error) {
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}

	lines := strings.Split(text, "\n")
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		kw := Normalize(line)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}

	if len(out) == 0 {
		return nil, &InputValidationError{Err: ErrNoKeywords}
	}
	if len(out) > maxKeywords {
		return nil, &InputValidationError{
			Err:    ErrTooManyKeywords,
			Detail: fmt.Sprintf("%d keywords, limit is %d", len(out), maxKeywords),
		}
	}
	return out, nil
}

// Normalize applies the per-keyword normalization used by Parse.
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// ValidateCountry rejects an empty country selection.
func ValidateCountry(country string) error {
	if strings.TrimSpace(country) == "" {
		return &InputValidationError{Err: ErrNoCountry}
	}
	return nil
}

package batch

import (
	"errors"
	"fmt"
)

var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Split cuts keywords into contiguous chunks of at most size entries.
// Concatenating the chunks gives back the input.
func Split(keywords []string, size int) ([][]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, size)
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	chunks := make([][]string, 0, (len(keywords)+size-1)/size)
	for i := 0; i < len(keywords); i += size {
		end := i + size
		if end > len(keywords) {
			end = len(keywords)
		}
		chunks = append(chunks, keywords[i:end:end])
	}
	return chunks, nil
}

// dedupe keeps the first occurrence of each keyword.
func dedupe(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

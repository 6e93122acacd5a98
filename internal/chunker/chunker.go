// Package chunker splits raw document text into fixed-size overlapping
// windows. Splitting is pure and deterministic: identical input always
// yields the same ordered sequence, and chunk order follows document order.
package chunker

import "fmt"

// Split produces consecutive windows text[start:start+size], advancing start
// by (size - overlap) each step until start reaches the end of the text. The
// final window may be shorter than size. Requires 0 < overlap < size.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap <= 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in (0, size), got overlap=%d size=%d", overlap, size)
	}

	if text == "" {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]string, 0, (len(text)+step-1)/step)
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks, nil
}

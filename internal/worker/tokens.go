package worker

import "strings"

type TokenCounter interface {
	Count(text string) int
}

// ApproxTokenCounter estimates tokens as roughly four bytes each, never
// fewer than one per word.
type ApproxTokenCounter struct{}

func (ApproxTokenCounter) Count(text string) int {
	n := 0
	for _, word := range strings.Fields(text) {
		n += (len(word) + 3) / 4
	}
	return n
}

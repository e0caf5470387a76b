// Package data turns an encoded corpus into shifted training pairs and
// shuffled batches.
package data

import (
	"fmt"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// Pair is one training example. Target[i] is the symbol that follows
// Input[i] in the corpus. Both slices alias the encoded corpus and must be
// treated as read-only.
type Pair struct {
	Input  []int
	Target []int
}

// MakePairs cuts encoded into consecutive, non-overlapping windows of
// windowLength+1 symbols and splits each into an input and a target shifted
// by one position. A trailing remainder shorter than a window is dropped.
func MakePairs(encoded []int, windowLength int) ([]Pair, error) {
	if windowLength < 1 {
		return nil, fmt.Errorf("data: window length %d: %w", windowLength, contract.ErrInvalidConfiguration)
	}

	span := windowLength + 1
	n := len(encoded) / span
	pairs := make([]Pair, n)
	for i := range pairs {
		w := encoded[i*span : (i+1)*span : (i+1)*span]
		pairs[i] = Pair{
			Input:  w[:windowLength:windowLength],
			Target: w[1:],
		}
	}
	return pairs, nil
}

package data

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// Batch is a fixed-size group of pairs.
type Batch []Pair

// Inputs returns the input sequences of the batch in order.
func (b Batch) Inputs() [][]int {
	out := make([][]int, len(b))
	for i, p := range b {
		out[i] = p.Input
	}
	return out
}

// Targets returns the target sequences of the batch in order.
func (b Batch) Targets() [][]int {
	out := make([][]int, len(b))
	for i, p := range b {
		out[i] = p.Target
	}
	return out
}

// Shuffle reorders seq through a look-ahead buffer of bufferSize elements:
// the buffer is filled first, then each incoming element replaces a uniformly
// chosen buffered one, which is emitted. When the buffer is at least as large
// as seq, the result is a uniform permutation of the whole sequence; a
// smaller buffer only mixes elements that are close together. A bufferSize
// below 1 is treated as 1, which keeps the order; a nil rng is unseeded.
func Shuffle[T any](seq iter.Seq[T], bufferSize int, rng *rand.Rand) iter.Seq[T] {
	bufferSize = max(bufferSize, 1)
	if rng == nil {
		rng = newUnseeded()
	}
	return func(yield func(T) bool) {
		buf := make([]T, 0, min(bufferSize, 1024))
		for v := range seq {
			if len(buf) < bufferSize {
				buf = append(buf, v)
				continue
			}
			j := rng.IntN(len(buf))
			out := buf[j]
			buf[j] = v
			if !yield(out) {
				return
			}
		}
		for len(buf) > 0 {
			j := rng.IntN(len(buf))
			out := buf[j]
			last := len(buf) - 1
			buf[j] = buf[last]
			buf = buf[:last]
			if !yield(out) {
				return
			}
		}
	}
}

// Batches groups seq into consecutive batches of size elements and drops a
// final incomplete group.
func Batches(seq iter.Seq[Pair], size int) iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		cur := make(Batch, 0, size)
		for p := range seq {
			cur = append(cur, p)
			if len(cur) == size {
				if !yield(cur) {
					return
				}
				cur = make(Batch, 0, size)
			}
		}
	}
}

func checkBatching(batchSize, shuffleBuffer int) error {
	if batchSize < 1 {
		return fmt.Errorf("data: batch size %d: %w", batchSize, contract.ErrInvalidConfiguration)
	}
	if shuffleBuffer < 1 {
		return fmt.Errorf("data: shuffle buffer %d: %w", shuffleBuffer, contract.ErrInvalidConfiguration)
	}
	return nil
}

// ShuffleAndBatch shuffles pairs with a bounded buffer and groups them into
// batches of batchSize, dropping the incomplete tail. rng is consumed; pass a
// seeded source for reproducible batches.
func ShuffleAndBatch(pairs []Pair, batchSize, shuffleBuffer int, rng *rand.Rand) ([]Batch, error) {
	if err := checkBatching(batchSize, shuffleBuffer); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = newUnseeded()
	}

	batches := make([]Batch, 0, len(pairs)/batchSize)
	for b := range Batches(Shuffle(slices.Values(pairs), shuffleBuffer, rng), batchSize) {
		batches = append(batches, b)
	}
	return batches, nil
}

func newUnseeded() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

package data

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

func makeTestPairs(t *testing.T, n int) []Pair {
	t.Helper()
	pairs, err := MakePairs(seq(n*2), 1)
	require.NoError(t, err)
	require.Len(t, pairs, n)
	return pairs
}

func firstInputs(batches []Batch) []int {
	var ids []int
	for _, b := range batches {
		for _, p := range b {
			ids = append(ids, p.Input[0])
		}
	}
	return ids
}

func TestShuffleAndBatchSizes(t *testing.T) {
	pairs := makeTestPairs(t, 1000)
	batches, err := ShuffleAndBatch(pairs, 64, 10000, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	require.Len(t, batches, 15)
	for _, b := range batches {
		assert.Len(t, b, 64)
	}
	assert.Len(t, firstInputs(batches), 1000-40)
}

func TestShuffleAndBatchPermutation(t *testing.T) {
	pairs := makeTestPairs(t, 256)
	batches, err := ShuffleAndBatch(pairs, 16, len(pairs), rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)

	got := firstInputs(batches)
	want := firstInputs([]Batch{pairs})
	assert.NotEqual(t, want, got, "a full-buffer shuffle of 256 items should reorder them")

	slices.Sort(got)
	assert.Equal(t, want, got)

	for _, b := range batches {
		for _, p := range b {
			assert.Equal(t, p.Input[0]+1, p.Target[0], "pairs must stay intact")
		}
	}
}

func TestShuffleAndBatchSeeded(t *testing.T) {
	pairs := makeTestPairs(t, 100)
	a, err := ShuffleAndBatch(pairs, 10, 30, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	b, err := ShuffleAndBatch(pairs, 10, 30, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	assert.Equal(t, firstInputs(a), firstInputs(b))
}

func TestShuffleBufferOfOneKeepsOrder(t *testing.T) {
	pairs := makeTestPairs(t, 20)
	batches, err := ShuffleAndBatch(pairs, 5, 1, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, firstInputs([]Batch{pairs}), firstInputs(batches))
}

func TestShuffleBoundedDisplacement(t *testing.T) {
	const n, buffer = 500, 8
	var out []int
	for v := range Shuffle(slices.Values(seq(n)), buffer, rand.New(rand.NewPCG(9, 9))) {
		out = append(out, v)
	}
	require.Len(t, out, n)

	// An element cannot be emitted before the buffer has reached it.
	for pos, v := range out {
		assert.LessOrEqual(t, v, pos+buffer, "value %d emitted at %d", v, pos)
	}
	slices.Sort(out)
	assert.Equal(t, seq(n), out)
}

func TestShuffleEarlyStop(t *testing.T) {
	count := 0
	for range Shuffle(slices.Values(seq(50)), 10, rand.New(rand.NewPCG(1, 1))) {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestShuffleClampsBuffer(t *testing.T) {
	for _, buffer := range []int{0, -3} {
		got := slices.Collect(Shuffle(slices.Values(seq(20)), buffer, nil))
		assert.Equal(t, seq(20), got, "buffer %d", buffer)
	}
}

func TestShuffleAndBatchInvalid(t *testing.T) {
	pairs := makeTestPairs(t, 10)
	tests := []struct {
		name          string
		batch, buffer int
	}{
		{"zero batch", 0, 10},
		{"negative batch", -1, 10},
		{"zero buffer", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ShuffleAndBatch(pairs, tt.batch, tt.buffer, nil)
			require.ErrorIs(t, err, contract.ErrInvalidConfiguration)
		})
	}
}

func TestBatchAccessors(t *testing.T) {
	b := Batch{
		{Input: []int{1, 2}, Target: []int{2, 3}},
		{Input: []int{4, 5}, Target: []int{5, 6}},
	}
	assert.Equal(t, [][]int{{1, 2}, {4, 5}}, b.Inputs())
	assert.Equal(t, [][]int{{2, 3}, {5, 6}}, b.Targets())
}

package generate

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
	"github.com/joelsearcy/charrnn-go/pkg/model"
	"github.com/joelsearcy/charrnn-go/pkg/vocab"
)

// stubModel returns fixed logits and records how it was driven.
type stubModel struct {
	logits func(call int) []float64
	fail   map[int]error // call number (1-based) -> error

	events   []string
	inputs   [][]int
	resets   int
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (s *stubModel) ResetState() {
	s.resets++
	s.events = append(s.events, "reset")
}

func (s *stubModel) Step(_ context.Context, tokens []int) ([]float64, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)

	s.events = append(s.events, "step")
	s.inputs = append(s.inputs, append([]int(nil), tokens...))
	call := len(s.inputs)
	if err := s.fail[call]; err != nil {
		return nil, err
	}
	return s.logits(call), nil
}

func uniform(n int) func(int) []float64 {
	return func(int) []float64 { return make([]float64, n) }
}

func testVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.Build("'abcdefgh ")
	require.NoError(t, err)
	return v
}

func seeded(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, seed)) }

func TestGenerateUniform(t *testing.T) {
	v := testVocab(t)
	m := &stubModel{logits: uniform(v.Size())}

	out, err := Generate(context.Background(), m, v, "'", 5, 1.0, seeded(1))
	require.NoError(t, err)
	require.Equal(t, 6, utf8.RuneCountInString(out))
	assert.Equal(t, "'", out[:1])
	for _, r := range out[1:] {
		_, err := v.Encode(r)
		assert.NoError(t, err)
	}

	assert.Equal(t, 1, m.resets)
	assert.Equal(t, []string{"reset", "step", "step", "step", "step", "step"}, m.events)
}

func TestGenerateFeedsBackSingleToken(t *testing.T) {
	v := testVocab(t)
	m := &stubModel{logits: uniform(v.Size())}
	const start = "abc"

	out, err := Generate(context.Background(), m, v, start, 4, 1.0, seeded(2))
	require.NoError(t, err)

	enc, err := v.EncodeString(start)
	require.NoError(t, err)
	require.Len(t, m.inputs, 4)
	assert.Equal(t, enc, m.inputs[0], "first step sees the whole start string")

	generated := []rune(out)[len(start):]
	for i := 1; i < len(m.inputs); i++ {
		want, err := v.Encode(generated[i-1])
		require.NoError(t, err)
		assert.Equal(t, []int{want}, m.inputs[i], "step %d feeds back the previous draw", i+1)
	}
}

func TestGenerateZeroLength(t *testing.T) {
	v := testVocab(t)
	m := &stubModel{logits: uniform(v.Size())}
	out, err := Generate(context.Background(), m, v, "ab", 0, 1.0, seeded(1))
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
	assert.Empty(t, m.inputs)
}

func TestGenerateRejectsBeforeModelCall(t *testing.T) {
	v := testVocab(t)
	tests := []struct {
		name        string
		start       string
		length      int
		temperature float64
		err         error
	}{
		{"zero temperature", "a", 5, 0, contract.ErrInvalidConfiguration},
		{"negative temperature", "a", 5, -1, contract.ErrInvalidConfiguration},
		{"nan temperature", "a", 5, math.NaN(), contract.ErrInvalidConfiguration},
		{"infinite temperature", "a", 5, math.Inf(1), contract.ErrInvalidConfiguration},
		{"negative length", "a", -1, 1, contract.ErrInvalidConfiguration},
		{"empty start", "", 5, 1, contract.ErrInvalidConfiguration},
		{"undefined symbol", "aZb", 5, 1, contract.ErrUndefinedSymbol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &stubModel{logits: uniform(v.Size())}
			out, err := Generate(context.Background(), m, v, tt.start, tt.length, tt.temperature, seeded(1))
			require.ErrorIs(t, err, tt.err)
			assert.Empty(t, out)
			assert.Empty(t, m.events, "model must not be touched")

			var genErr *Error
			assert.False(t, errors.As(err, &genErr))
		})
	}
}

func TestGenerateLowTemperaturePicksArgMax(t *testing.T) {
	v := testVocab(t)
	target, err := v.Encode('g')
	require.NoError(t, err)

	logits := func(int) []float64 {
		l := make([]float64, v.Size())
		for i := range l {
			l[i] = float64(i) * 0.1
		}
		l[target] = 2
		return l
	}
	m := &stubModel{logits: logits}

	out, err := Generate(context.Background(), m, v, "a", 200, 1e-3, seeded(3))
	require.NoError(t, err)
	for _, r := range out[1:] {
		require.Equal(t, 'g', r)
	}
}

func TestGenerateModelFailure(t *testing.T) {
	v := testVocab(t)
	boom := errors.New("device lost")
	m := &stubModel{logits: uniform(v.Size()), fail: map[int]error{3: boom}}

	out, err := Generate(context.Background(), m, v, "ab", 10, 1.0, seeded(4))
	assert.Empty(t, out)
	require.ErrorIs(t, err, contract.ErrModelInvocation)
	require.ErrorIs(t, err, boom)

	var genErr *Error
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 3, genErr.Step)
	assert.Equal(t, 4, utf8.RuneCountInString(genErr.Partial))
	assert.Equal(t, "ab", genErr.Partial[:2])
	assert.Contains(t, err.Error(), "step 3")
}

func TestGenerateCancellationKeepsPartial(t *testing.T) {
	v := testVocab(t)
	m := &stubModel{logits: uniform(v.Size())}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var streamed []rune
	g := New(m, v, WithRand(seeded(5)), WithStream(func(r rune) {
		streamed = append(streamed, r)
		if len(streamed) == 2 {
			cancel()
		}
	}))

	_, err := g.Generate(ctx, "a", 50, 1.0)
	require.ErrorIs(t, err, context.Canceled)

	var genErr *Error
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 3, genErr.Step)
	assert.Equal(t, "a"+string(streamed), genErr.Partial)
	assert.Len(t, m.inputs, 2)
}

func TestGenerateIndexOutOfRange(t *testing.T) {
	v := testVocab(t)
	m := &stubModel{logits: func(int) []float64 {
		l := make([]float64, v.Size()+3)
		l[len(l)-1] = 100
		return l
	}}

	_, err := Generate(context.Background(), m, v, "a", 3, 0.01, seeded(1))
	require.ErrorIs(t, err, contract.ErrIndexOutOfRange)
	var genErr *Error
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 1, genErr.Step)
	assert.Equal(t, "a", genErr.Partial)
}

func TestGenerateResetsEveryCall(t *testing.T) {
	v := testVocab(t)
	m := &stubModel{logits: uniform(v.Size())}
	g := New(m, v, WithRand(seeded(6)))

	for i := range 3 {
		out, err := g.Generate(context.Background(), "ab", 4, 1.0)
		require.NoError(t, err)
		assert.Equal(t, 6, utf8.RuneCountInString(out))
		assert.Equal(t, i+1, m.resets)
	}
}

func TestGenerateSerializesConcurrentCalls(t *testing.T) {
	v := testVocab(t)
	m := &stubModel{logits: uniform(v.Size())}
	g := New(m, v, WithRand(seeded(7)))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Generate(context.Background(), "a", 20, 1.0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, m.overlap.Load())
	assert.Equal(t, 8, m.resets)
	assert.Len(t, m.inputs, 8*20)
}

func newSessionModel(t *testing.T, v *vocab.Vocabulary) *model.GRU {
	t.Helper()
	g, err := model.NewGRU(model.Config{VocabSize: v.Size(), EmbedDim: 4, HiddenSize: 8}, seeded(11))
	require.NoError(t, err)
	return g
}

func TestGenerateWithSessionsIsSeedDeterministic(t *testing.T) {
	v := testVocab(t)
	gru := newSessionModel(t, v)

	run := func(seed uint64) string {
		s, err := gru.NewSession()
		require.NoError(t, err)
		out, err := Generate(context.Background(), s, v, "'", 40, 1.0, seeded(seed))
		require.NoError(t, err)
		return out
	}

	a, b := run(21), run(21)
	assert.Equal(t, a, b, "fixed seed gives identical output")

	c := run(22)
	assert.Equal(t, utf8.RuneCountInString(a), utf8.RuneCountInString(c))
}

// recordingModel keeps the logits a real session returned at every step.
type recordingModel struct {
	*model.Session
	logits [][]float64
}

func (r *recordingModel) Step(ctx context.Context, tokens []int) ([]float64, error) {
	l, err := r.Session.Step(ctx, tokens)
	r.logits = append(r.logits, l)
	return l, err
}

func TestGenerateStateContinuity(t *testing.T) {
	// Single-token feedback must see the same distribution at every step as
	// replaying the whole prefix from a zero state.
	v := testVocab(t)
	gru := newSessionModel(t, v)
	const start = "ab"

	s, err := gru.NewSession()
	require.NoError(t, err)
	rec := &recordingModel{Session: s}
	out, err := Generate(context.Background(), rec, v, start, 15, 0.5, seeded(8))
	require.NoError(t, err)
	require.Len(t, rec.logits, 15)

	ids, err := v.EncodeString(out)
	require.NoError(t, err)
	replay, err := gru.Forward([][]int{ids})
	require.NoError(t, err)

	for k, got := range rec.logits {
		pos := len(start) - 1 + k
		assert.InDeltaSlice(t, replay[0][pos], got, 1e-9, "step %d", k+1)
	}
}

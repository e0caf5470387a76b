package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

func TestBuildSortsByCodePoint(t *testing.T) {
	v, err := Build("hello, world")
	require.NoError(t, err)
	assert.Equal(t, []rune(" ,dehlorw"), v.Runes())
	assert.Equal(t, 9, v.Size())
}

func TestBuildIsDeterministic(t *testing.T) {
	corpus := "The quick brown fox jumps over the lazy dog. ¿Qué? 日本"
	a, err := Build(corpus)
	require.NoError(t, err)
	b, err := Build(corpus)
	require.NoError(t, err)
	assert.Equal(t, a.Runes(), b.Runes())
}

func TestBuildEmptyCorpus(t *testing.T) {
	_, err := Build("")
	require.ErrorIs(t, err, contract.ErrInvalidConfiguration)
}

func TestRoundTrip(t *testing.T) {
	corpus := "abcabc\n\tÄöü 😀 end"
	v, err := Build(corpus)
	require.NoError(t, err)

	for _, r := range corpus {
		id, err := v.Encode(r)
		require.NoError(t, err)
		require.GreaterOrEqual(t, id, 0)
		require.Less(t, id, v.Size())

		back, err := v.Decode(id)
		require.NoError(t, err)
		require.Equal(t, r, back)
	}

	ids, err := v.EncodeString(corpus)
	require.NoError(t, err)
	assert.Len(t, ids, len([]rune(corpus)))

	text, err := v.DecodeString(ids)
	require.NoError(t, err)
	assert.Equal(t, corpus, text)
}

func TestEncodeUndefinedSymbol(t *testing.T) {
	v, err := Build("abc")
	require.NoError(t, err)

	_, err = v.Encode('z')
	require.ErrorIs(t, err, contract.ErrUndefinedSymbol)

	_, err = v.EncodeString("abzc")
	require.ErrorIs(t, err, contract.ErrUndefinedSymbol)
	assert.Contains(t, err.Error(), "offset 2")
}

func TestDecodeOutOfRange(t *testing.T) {
	v, err := Build("abc")
	require.NoError(t, err)

	for _, id := range []int{-1, 3, 100} {
		_, err := v.Decode(id)
		require.ErrorIs(t, err, contract.ErrIndexOutOfRange, "id %d", id)
	}

	_, err = v.DecodeString([]int{0, 1, 7})
	require.ErrorIs(t, err, contract.ErrIndexOutOfRange)
}

func TestFromRunes(t *testing.T) {
	orig, err := Build("mississippi")
	require.NoError(t, err)

	restored, err := FromRunes(orig.Runes())
	require.NoError(t, err)
	assert.Equal(t, orig.Runes(), restored.Runes())

	id, err := restored.Encode('s')
	require.NoError(t, err)
	want, _ := orig.Encode('s')
	assert.Equal(t, want, id)

	tests := []struct {
		name  string
		runes []rune
	}{
		{"empty", nil},
		{"unsorted", []rune("ba")},
		{"duplicate", []rune("aab")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromRunes(tt.runes)
			require.ErrorIs(t, err, contract.ErrInvalidConfiguration)
		})
	}
}

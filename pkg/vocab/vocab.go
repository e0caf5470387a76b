// Package vocab maps the characters of a corpus to dense integer indices.
package vocab

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// Vocabulary is an immutable bijection between the distinct runes of a corpus
// and the indices [0, Size()).
type Vocabulary struct {
	runeToID map[rune]int
	idToRune []rune
}

// Build collects the unique runes of corpus, sorted by code point.
func Build(corpus string) (*Vocabulary, error) {
	if corpus == "" {
		return nil, fmt.Errorf("vocab: build from empty corpus: %w", contract.ErrInvalidConfiguration)
	}

	runeSet := make(map[rune]struct{})
	for _, r := range corpus {
		runeSet[r] = struct{}{}
	}

	runes := make([]rune, 0, len(runeSet))
	for r := range runeSet {
		runes = append(runes, r)
	}
	slices.Sort(runes)

	return newVocabulary(runes), nil
}

// FromRunes restores a vocabulary from the ordered rune list returned by Runes.
// The list must be non-empty, strictly increasing and therefore duplicate free.
func FromRunes(runes []rune) (*Vocabulary, error) {
	if len(runes) == 0 {
		return nil, fmt.Errorf("vocab: restore from empty rune list: %w", contract.ErrInvalidConfiguration)
	}
	for i := 1; i < len(runes); i++ {
		if runes[i] <= runes[i-1] {
			return nil, fmt.Errorf("vocab: runes not strictly increasing at %d: %w", i, contract.ErrInvalidConfiguration)
		}
	}
	return newVocabulary(slices.Clone(runes)), nil
}

func newVocabulary(runes []rune) *Vocabulary {
	runeToID := make(map[rune]int, len(runes))
	for i, r := range runes {
		runeToID[r] = i
	}
	return &Vocabulary{runeToID: runeToID, idToRune: runes}
}

// Size returns the number of distinct symbols.
func (v *Vocabulary) Size() int {
	return len(v.idToRune)
}

// Runes returns a copy of the symbols in index order.
func (v *Vocabulary) Runes() []rune {
	return slices.Clone(v.idToRune)
}

// Encode returns the index of r.
func (v *Vocabulary) Encode(r rune) (int, error) {
	id, ok := v.runeToID[r]
	if !ok {
		return 0, fmt.Errorf("vocab: encode %q: %w", r, contract.ErrUndefinedSymbol)
	}
	return id, nil
}

// Decode returns the rune at index id.
func (v *Vocabulary) Decode(id int) (rune, error) {
	if id < 0 || id >= len(v.idToRune) {
		return 0, fmt.Errorf("vocab: decode %d (size %d): %w", id, len(v.idToRune), contract.ErrIndexOutOfRange)
	}
	return v.idToRune[id], nil
}

// EncodeString maps every rune of s to its index. The result has exactly one
// element per rune of s.
func (v *Vocabulary) EncodeString(s string) ([]int, error) {
	ids := make([]int, 0, len(s))
	for offset, r := range s {
		id, ok := v.runeToID[r]
		if !ok {
			return nil, fmt.Errorf("vocab: encode %q at byte offset %d: %w", r, offset, contract.ErrUndefinedSymbol)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DecodeString is the inverse of EncodeString.
func (v *Vocabulary) DecodeString(ids []int) (string, error) {
	var builder strings.Builder
	builder.Grow(len(ids))
	for i, id := range ids {
		r, err := v.Decode(id)
		if err != nil {
			return "", fmt.Errorf("position %d: %w", i, err)
		}
		builder.WriteRune(r)
	}
	return builder.String(), nil
}

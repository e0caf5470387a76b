package contract

import "context"

// SequenceModel scores every position of every example in a batch.
// The result is indexed [example][position][vocabulary symbol].
type SequenceModel interface {
	Forward(batch [][]int) ([][][]float64, error)
}

// StatefulModel is the single-example mode used for generation. The recurrent
// state is owned by the implementation: ResetState returns it to its initial
// value and each Step advances it once per consumed token.
type StatefulModel interface {
	ResetState()
	// Step consumes tokens in order and returns the logits for the last one.
	Step(ctx context.Context, tokens []int) ([]float64, error)
}

package contract

import "errors"

// Sentinel errors shared by every stage of the pipeline. Stages wrap them with
// fmt.Errorf("<stage>: ...: %w", Err...) so callers match with errors.Is.
var (
	// ErrUndefinedSymbol is returned when a character is not in the vocabulary.
	ErrUndefinedSymbol = errors.New("charrnn: undefined symbol")

	// ErrInvalidConfiguration covers non-positive temperature, an empty corpus,
	// window_length < 1, batch_size < 1 and similar parameter errors.
	ErrInvalidConfiguration = errors.New("charrnn: invalid configuration")

	// ErrIndexOutOfRange is returned when decoding an index outside the vocabulary.
	ErrIndexOutOfRange = errors.New("charrnn: index out of range")

	// ErrModelInvocation marks a failure surfaced by the sequence model. The
	// model's own error is always wrapped alongside it.
	ErrModelInvocation = errors.New("charrnn: model invocation failed")
)

// Package model implements the character-level recurrent sequence model:
// embedding, a gated recurrent unit and a dense projection to vocabulary
// logits.
//
// Training runs through the scalar autograd graph (Loss). Inference
// (Forward, Session) runs on plain float64 weights through a Cell, whose
// backend is chosen once from Config.Cell.
package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/joelsearcy/charrnn-go/pkg/autograd"
	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// Config describes the shape of a model and its inference backend.
type Config struct {
	VocabSize  int      `yaml:"-"`
	EmbedDim   int      `yaml:"embed_dim"`
	HiddenSize int      `yaml:"hidden_size"`
	Cell       CellKind `yaml:"cell"`
}

// Validate reports non-positive dimensions and unknown cell kinds.
func (c Config) Validate() error {
	switch {
	case c.VocabSize < 1:
		return fmt.Errorf("model: vocab size %d: %w", c.VocabSize, contract.ErrInvalidConfiguration)
	case c.EmbedDim < 1:
		return fmt.Errorf("model: embed dim %d: %w", c.EmbedDim, contract.ErrInvalidConfiguration)
	case c.HiddenSize < 1:
		return fmt.Errorf("model: hidden size %d: %w", c.HiddenSize, contract.ErrInvalidConfiguration)
	}
	_, err := ParseCellKind(string(c.Cell))
	return err
}

// GRU is the character model.
type GRU struct {
	Params *Params
	cfg    Config
}

// NewGRU creates a model with freshly initialized weights. cfg.Cell is
// stored in its canonical form.
func NewGRU(cfg Config, rng *rand.Rand) (*GRU, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Cell, _ = ParseCellKind(string(cfg.Cell))
	return &GRU{Params: NewParams(cfg, rng), cfg: cfg}, nil
}

// Config returns the model shape.
func (g *GRU) Config() Config { return g.cfg }

// Parameters returns every trainable scalar.
func (g *GRU) Parameters() []*autograd.Value { return g.Params.AllParams() }

func (g *GRU) checkTokens(seq []int) error {
	for pos, t := range seq {
		if t < 0 || t >= g.cfg.VocabSize {
			return fmt.Errorf("model: token %d at position %d (vocab %d): %w",
				t, pos, g.cfg.VocabSize, contract.ErrIndexOutOfRange)
		}
	}
	return nil
}

// Loss unrolls the recurrence over every input sequence from a zero state
// and returns the mean cross-entropy of predicting targets.
func (g *GRU) Loss(inputs, targets [][]int) (*autograd.Value, error) {
	if len(inputs) == 0 || len(inputs) != len(targets) {
		return nil, fmt.Errorf("model: loss over %d inputs and %d targets: %w",
			len(inputs), len(targets), contract.ErrInvalidConfiguration)
	}

	var losses []*autograd.Value
	for ex, in := range inputs {
		tgt := targets[ex]
		if len(in) == 0 || len(in) != len(tgt) {
			return nil, fmt.Errorf("model: example %d has %d inputs and %d targets: %w",
				ex, len(in), len(tgt), contract.ErrInvalidConfiguration)
		}
		if err := g.checkTokens(in); err != nil {
			return nil, fmt.Errorf("example %d input: %w", ex, err)
		}
		if err := g.checkTokens(tgt); err != nil {
			return nil, fmt.Errorf("example %d target: %w", ex, err)
		}

		h := autograd.Zeros(g.cfg.HiddenSize)
		for pos, tok := range in {
			h = gruStep(g.Params, g.cfg.HiddenSize, g.Params.Embed.Row(tok), h)
			logits := Affine(h, g.Params.Out, g.Params.OutB)
			losses = append(losses, autograd.FusedCrossEntropy(logits, tgt[pos]))
		}
	}

	total := autograd.Sum(losses)
	return total.Mul(autograd.Scalar(1 / float64(len(losses)))), nil
}

package model

import (
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/joelsearcy/charrnn-go/pkg/autograd"
	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// FlatMatrix stores 2D matrix as contiguous 1D slice (row-major)
type FlatMatrix struct {
	Data       []*autograd.Value
	Rows, Cols int
}

// NewMatrix creates a matrix with Gaussian-initialized values
func NewMatrix(rows, cols int, std float64, rng *rand.Rand) *FlatMatrix {
	data := make([]*autograd.Value, rows*cols)
	for i := range data {
		data[i] = autograd.NewValue(rng.NormFloat64() * std)
	}
	return &FlatMatrix{Data: data, Rows: rows, Cols: cols}
}

// ZeroMatrix creates a matrix of zeros.
func ZeroMatrix(rows, cols int) *FlatMatrix {
	return &FlatMatrix{Data: autograd.Zeros(rows * cols), Rows: rows, Cols: cols}
}

// At returns pointer to element at (row, col)
func (m *FlatMatrix) At(row, col int) *autograd.Value {
	return m.Data[row*m.Cols+col]
}

// Row returns a slice view of row
func (m *FlatMatrix) Row(row int) []*autograd.Value {
	start := row * m.Cols
	return m.Data[start : start+m.Cols]
}

// Floats copies the current values out of the graph.
func (m *FlatMatrix) Floats() []float64 {
	return autograd.Data(m.Data)
}

// Params holds the trainable weights of the character model.
//
// The recurrent weights stack the three GRU gates by row: rows [0,H) are the
// update gate z, [H,2H) the reset gate r and [2H,3H) the candidate state.
type Params struct {
	Embed *FlatMatrix // [vocab, embed]
	W     *FlatMatrix // input weights [3*hidden, embed]
	U     *FlatMatrix // recurrent weights [3*hidden, hidden]
	B     *FlatMatrix // gate biases [1, 3*hidden]
	Out   *FlatMatrix // projection [vocab, hidden]
	OutB  *FlatMatrix // projection bias [1, vocab]

	allParams []*autograd.Value
}

// NewParams initializes weights with a fan-in scaled Gaussian and zero biases.
func NewParams(cfg Config, rng *rand.Rand) *Params {
	v, e, h := cfg.VocabSize, cfg.EmbedDim, cfg.HiddenSize
	p := &Params{
		Embed: NewMatrix(v, e, 0.1, rng),
		W:     NewMatrix(3*h, e, 1/math.Sqrt(float64(e)), rng),
		U:     NewMatrix(3*h, h, 1/math.Sqrt(float64(h)), rng),
		B:     ZeroMatrix(1, 3*h),
		Out:   NewMatrix(v, h, 1/math.Sqrt(float64(h)), rng),
		OutB:  ZeroMatrix(1, v),
	}
	p.cacheAllParams()
	return p
}

func (p *Params) named() map[string]*FlatMatrix {
	return map[string]*FlatMatrix{
		"embed": p.Embed,
		"gru.w": p.W,
		"gru.u": p.U,
		"gru.b": p.B,
		"out.w": p.Out,
		"out.b": p.OutB,
	}
}

func (p *Params) cacheAllParams() {
	named := p.named()
	var params []*autograd.Value
	for _, name := range slices.Sorted(maps.Keys(named)) {
		params = append(params, named[name].Data...)
	}
	p.allParams = params
}

// AllParams returns flattened list of all parameters (cached)
func (p *Params) AllParams() []*autograd.Value {
	return p.allParams
}

// ZeroGrads resets all parameter gradients to 0
func (p *Params) ZeroGrads() {
	for _, param := range p.allParams {
		param.Grad = 0
	}
}

// StateDict copies every weight tensor out under a stable name.
func (p *Params) StateDict() map[string][]float64 {
	out := make(map[string][]float64, 6)
	for name, m := range p.named() {
		out[name] = m.Floats()
	}
	return out
}

// LoadStateDict overwrites the weights in place. Every tensor must be present
// with the expected length; nothing is modified on error.
func (p *Params) LoadStateDict(state map[string][]float64) error {
	named := p.named()
	for name, m := range named {
		vals, ok := state[name]
		if !ok {
			return fmt.Errorf("model: state dict missing %q: %w", name, contract.ErrInvalidConfiguration)
		}
		if len(vals) != len(m.Data) {
			return fmt.Errorf("model: state dict %q has %d values, want %d: %w",
				name, len(vals), len(m.Data), contract.ErrInvalidConfiguration)
		}
	}
	for name, m := range named {
		for i, x := range state[name] {
			m.Data[i].Data = x
		}
	}
	return nil
}

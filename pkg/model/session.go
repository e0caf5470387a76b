package model

import (
	"context"
	"fmt"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// inference is a float64 snapshot of the model taken at construction time;
// later training steps do not affect it.
type inference struct {
	vocab, embed int
	cell         Cell
	embedW       []float64 // [vocab, embed]
	out          []float64 // [vocab, hidden]
	outB         []float64 // [vocab]
}

func (g *GRU) freeze() (*inference, error) {
	p := g.Params
	cell, err := NewCell(g.cfg.Cell, Weights{
		EmbedDim:   g.cfg.EmbedDim,
		HiddenSize: g.cfg.HiddenSize,
		W:          p.W.Floats(),
		U:          p.U.Floats(),
		B:          p.B.Floats(),
	})
	if err != nil {
		return nil, err
	}
	return &inference{
		vocab:  g.cfg.VocabSize,
		embed:  g.cfg.EmbedDim,
		cell:   cell,
		embedW: p.Embed.Floats(),
		out:    p.Out.Floats(),
		outB:   p.OutB.Floats(),
	}, nil
}

func (m *inference) step(tok int, h []float64) ([]float64, error) {
	if tok < 0 || tok >= m.vocab {
		return nil, fmt.Errorf("model: token %d (vocab %d): %w", tok, m.vocab, contract.ErrIndexOutOfRange)
	}
	return m.cell.Step(m.embedW[tok*m.embed:(tok+1)*m.embed], h), nil
}

func (m *inference) logits(h []float64) []float64 {
	n := len(h)
	out := make([]float64, m.vocab)
	for v := range out {
		out[v] = dot(m.out[v*n:(v+1)*n], h) + m.outB[v]
	}
	return out
}

// Forward scores every position of every example, each starting from a zero
// state. It implements contract.SequenceModel.
func (g *GRU) Forward(batch [][]int) ([][][]float64, error) {
	m, err := g.freeze()
	if err != nil {
		return nil, err
	}

	out := make([][][]float64, len(batch))
	for ex, seq := range batch {
		h := make([]float64, g.cfg.HiddenSize)
		out[ex] = make([][]float64, len(seq))
		for pos, tok := range seq {
			if h, err = m.step(tok, h); err != nil {
				return nil, fmt.Errorf("example %d position %d: %w", ex, pos, err)
			}
			out[ex][pos] = m.logits(h)
		}
	}
	return out, nil
}

// Session is the stateful single-example mode of a GRU. It owns its recurrent
// state and must not be shared between concurrent generations.
// It implements contract.StatefulModel.
type Session struct {
	m *inference
	h []float64
}

// NewSession snapshots the current weights into a session with a zero state.
func (g *GRU) NewSession() (*Session, error) {
	m, err := g.freeze()
	if err != nil {
		return nil, err
	}
	return &Session{m: m, h: make([]float64, g.cfg.HiddenSize)}, nil
}

// ResetState zeroes the recurrent state.
func (s *Session) ResetState() {
	clear(s.h)
}

// State returns a copy of the current recurrent state.
func (s *Session) State() []float64 {
	return append([]float64(nil), s.h...)
}

// Step feeds tokens one at a time, advancing the state once per token, and
// returns the logits after the last one. The state is left untouched if any
// token is out of range.
func (s *Session) Step(ctx context.Context, tokens []int) ([]float64, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("model: step with no tokens: %w", contract.ErrInvalidConfiguration)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := s.h
	for _, tok := range tokens {
		next, err := s.m.step(tok, h)
		if err != nil {
			return nil, err
		}
		h = next
	}
	s.h = h
	return s.m.logits(h), nil
}

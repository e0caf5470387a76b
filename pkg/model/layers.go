package model

import (
	"github.com/joelsearcy/charrnn-go/pkg/autograd"
)

// Linear performs matrix-vector multiplication: W @ x
// w is [out_dim, in_dim], x is [in_dim], returns [out_dim]
func Linear(x []*autograd.Value, w *FlatMatrix) []*autograd.Value {
	out := make([]*autograd.Value, w.Rows)
	for i := 0; i < w.Rows; i++ {
		out[i] = autograd.DotProduct(w.Row(i), x)
	}
	return out
}

// Affine computes W @ x + b with b stored as a [1, out_dim] matrix.
func Affine(x []*autograd.Value, w, b *FlatMatrix) []*autograd.Value {
	out := make([]*autograd.Value, w.Rows)
	for i := 0; i < w.Rows; i++ {
		out[i] = autograd.DotProduct(w.Row(i), x).Add(b.At(0, i))
	}
	return out
}

// gruStep advances h by one input vector x inside the autograd graph.
func gruStep(p *Params, hidden int, x, h []*autograd.Value) []*autograd.Value {
	z := make([]*autograd.Value, hidden)
	rh := make([]*autograd.Value, hidden)
	for i := 0; i < hidden; i++ {
		z[i] = gate(p, i, x, h).Sigmoid()
		r := gate(p, hidden+i, x, h).Sigmoid()
		rh[i] = r.Mul(h[i])
	}

	next := make([]*autograd.Value, hidden)
	for i := 0; i < hidden; i++ {
		cand := gate(p, 2*hidden+i, x, rh).Tanh()
		next[i] = autograd.Blend(z[i], h[i], cand)
	}
	return next
}

// gate returns the pre-activation W[row]·x + U[row]·h + B[row].
func gate(p *Params, row int, x, h []*autograd.Value) *autograd.Value {
	return autograd.Sum([]*autograd.Value{
		autograd.DotProduct(p.W.Row(row), x),
		autograd.DotProduct(p.U.Row(row), h),
		p.B.At(0, row),
	})
}

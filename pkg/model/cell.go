package model

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// CellKind selects the inference backend of the recurrent cell.
type CellKind string

const (
	// CellPortable runs the GRU step as plain Go loops.
	CellPortable CellKind = "portable"
	// CellAccelerated runs the GRU step as gonum matrix-vector products,
	// which use an optimized BLAS when one is registered.
	CellAccelerated CellKind = "accelerated"
)

// ParseCellKind accepts the cell kind names; "" selects CellAccelerated.
func ParseCellKind(s string) (CellKind, error) {
	switch k := CellKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return CellAccelerated, nil
	case CellPortable, CellAccelerated:
		return k, nil
	default:
		return "", fmt.Errorf("model: unknown cell kind %q: %w", s, contract.ErrInvalidConfiguration)
	}
}

// Cell advances a recurrent state by one input vector.
type Cell interface {
	HiddenSize() int
	// Step returns the state after consuming x from state h. h is not modified.
	Step(x, h []float64) []float64
}

// Weights is a float64 copy of the recurrent weights, laid out like Params.
type Weights struct {
	EmbedDim   int
	HiddenSize int
	W          []float64 // [3*hidden, embed]
	U          []float64 // [3*hidden, hidden]
	B          []float64 // [3*hidden]
}

// NewCell builds the backend for kind over w. kind is parsed like
// ParseCellKind.
func NewCell(kind CellKind, w Weights) (Cell, error) {
	kind, err := ParseCellKind(string(kind))
	if err != nil {
		return nil, err
	}
	h, e := w.HiddenSize, w.EmbedDim
	if len(w.W) != 3*h*e || len(w.U) != 3*h*h || len(w.B) != 3*h {
		return nil, fmt.Errorf("model: cell weights do not match embed %d hidden %d: %w",
			e, h, contract.ErrInvalidConfiguration)
	}

	switch kind {
	case CellPortable:
		return &portableCell{w: w}, nil
	default:
		u := mat.NewDense(3*h, h, w.U)
		return &acceleratedCell{
			hidden: h,
			w:      mat.NewDense(3*h, e, w.W),
			uzr:    u.Slice(0, 2*h, 0, h),
			uc:     u.Slice(2*h, 3*h, 0, h),
			b:      mat.NewVecDense(3*h, w.B),
		}, nil
	}
}

type portableCell struct {
	w Weights
}

func (c *portableCell) HiddenSize() int { return c.w.HiddenSize }

func (c *portableCell) Step(x, h []float64) []float64 {
	n, e := c.w.HiddenSize, c.w.EmbedDim
	pre := func(row int, v []float64, width int) float64 {
		return dot(c.w.W[row*e:(row+1)*e], x) + dot(c.w.U[row*width:(row+1)*width], v) + c.w.B[row]
	}

	z := make([]float64, n)
	rh := make([]float64, n)
	for i := 0; i < n; i++ {
		z[i] = sigmoid(pre(i, h, n))
		rh[i] = sigmoid(pre(n+i, h, n)) * h[i]
	}

	next := make([]float64, n)
	for i := 0; i < n; i++ {
		cand := math.Tanh(pre(2*n+i, rh, n))
		next[i] = z[i]*h[i] + (1-z[i])*cand
	}
	return next
}

type acceleratedCell struct {
	hidden int
	w      *mat.Dense
	uzr    mat.Matrix // update and reset rows of U
	uc     mat.Matrix // candidate rows of U
	b      *mat.VecDense
}

func (c *acceleratedCell) HiddenSize() int { return c.hidden }

func (c *acceleratedCell) Step(x, h []float64) []float64 {
	n := c.hidden
	hv := mat.NewVecDense(n, h)

	wx := mat.NewVecDense(3*n, nil)
	wx.MulVec(c.w, mat.NewVecDense(len(x), x))
	wx.AddVec(wx, c.b)

	uh := mat.NewVecDense(2*n, nil)
	uh.MulVec(c.uzr, hv)

	z := make([]float64, n)
	rh := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		z[i] = sigmoid(wx.AtVec(i) + uh.AtVec(i))
		rh.SetVec(i, sigmoid(wx.AtVec(n+i)+uh.AtVec(n+i))*h[i])
	}

	urh := mat.NewVecDense(n, nil)
	urh.MulVec(c.uc, rh)

	next := make([]float64, n)
	for i := 0; i < n; i++ {
		cand := math.Tanh(wx.AtVec(2*n+i) + urh.AtVec(i))
		next[i] = z[i]*h[i] + (1-z[i])*cand
	}
	return next
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

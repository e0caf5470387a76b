package autograd

import "math"

// Add returns v + other.
func (v *Value) Add(other *Value) *Value {
	return node(v.Data+other.Data, []*Value{v, other}, []float64{1, 1})
}

// Mul returns v * other.
func (v *Value) Mul(other *Value) *Value {
	return node(v.Data*other.Data, []*Value{v, other}, []float64{other.Data, v.Data})
}

// Neg returns -v.
func (v *Value) Neg() *Value {
	return node(-v.Data, []*Value{v}, []float64{-1})
}

// Sub returns v - other.
func (v *Value) Sub(other *Value) *Value {
	return node(v.Data-other.Data, []*Value{v, other}, []float64{1, -1})
}

// Pow returns v^exp for a constant exponent.
func (v *Value) Pow(exp float64) *Value {
	return node(math.Pow(v.Data, exp), []*Value{v}, []float64{exp * math.Pow(v.Data, exp-1)})
}

// Div returns v / other.
func (v *Value) Div(other *Value) *Value {
	return v.Mul(other.Pow(-1))
}

// Exp returns e^v.
func (v *Value) Exp() *Value {
	e := math.Exp(v.Data)
	return node(e, []*Value{v}, []float64{e})
}

// Log returns ln(v).
func (v *Value) Log() *Value {
	return node(math.Log(v.Data), []*Value{v}, []float64{1 / v.Data})
}

// Sigmoid returns 1 / (1 + e^-v).
func (v *Value) Sigmoid() *Value {
	s := sigmoid(v.Data)
	return node(s, []*Value{v}, []float64{s * (1 - s)})
}

// Tanh returns tanh(v).
func (v *Value) Tanh() *Value {
	t := math.Tanh(v.Data)
	return node(t, []*Value{v}, []float64{1 - t*t})
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

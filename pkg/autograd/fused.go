package autograd

import "math"

// The operations below collapse what would be many scalar nodes into one,
// keeping the graph of a recurrent unroll small enough to train on.

// DotProduct returns sum(a[i]*b[i]) as a single node.
func DotProduct(a, b []*Value) *Value {
	if len(a) != len(b) {
		panic("autograd: DotProduct length mismatch")
	}

	n := len(a)
	var sum float64
	children := make([]*Value, 2*n)
	localGrads := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		sum += a[i].Data * b[i].Data
		children[2*i] = a[i]
		children[2*i+1] = b[i]
		localGrads[2*i] = b[i].Data
		localGrads[2*i+1] = a[i].Data
	}
	return node(sum, children, localGrads)
}

// Sum returns the sum of vs as a single node.
func Sum(vs []*Value) *Value {
	var sum float64
	localGrads := make([]float64, len(vs))
	for i, v := range vs {
		sum += v.Data
		localGrads[i] = 1
	}
	return node(sum, vs, localGrads)
}

// Blend returns z*a + (1-z)*b, the gated interpolation of a GRU update.
func Blend(z, a, b *Value) *Value {
	return node(
		z.Data*a.Data+(1-z.Data)*b.Data,
		[]*Value{z, a, b},
		[]float64{a.Data - b.Data, z.Data, 1 - z.Data},
	)
}

// softmax writes the stable softmax of logits into probs and returns
// log(sum(exp(logits))).
func softmax(logits []*Value, probs []float64) float64 {
	maxVal := logits[0].Data
	for _, v := range logits[1:] {
		maxVal = max(maxVal, v.Data)
	}
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(v.Data - maxVal)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return maxVal + math.Log(sum)
}

// FusedSoftmax computes softmax over logits; each output carries one row of
// the Jacobian: ∂p_i/∂x_j = p_i(δ_ij - p_j).
func FusedSoftmax(logits []*Value) []*Value {
	n := len(logits)
	probs := make([]float64, n)
	softmax(logits, probs)

	out := make([]*Value, n)
	for i := 0; i < n; i++ {
		localGrads := make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				localGrads[j] = probs[i] * (1 - probs[j])
			} else {
				localGrads[j] = -probs[i] * probs[j]
			}
		}
		out[i] = node(probs[i], logits, localGrads)
	}
	return out
}

// FusedCrossEntropy returns -log(softmax(logits)[target]) as one node whose
// local gradients are p_j - δ_j,target.
func FusedCrossEntropy(logits []*Value, target int) *Value {
	if target < 0 || target >= len(logits) {
		panic("autograd: FusedCrossEntropy target out of range")
	}
	probs := make([]float64, len(logits))
	lse := softmax(logits, probs)

	localGrads := probs
	localGrads[target] -= 1
	return node(lse-logits[target].Data, logits, localGrads)
}

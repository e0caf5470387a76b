// Package autograd implements scalar reverse-mode automatic differentiation.
//
// Every operation returns a new *Value that remembers its inputs and the local
// derivative with respect to each of them. Backward walks the resulting graph
// in reverse topological order and accumulates gradients by the chain rule.
package autograd

// Value is a scalar node in the computation graph.
type Value struct {
	Data float64 // forward value
	Grad float64 // d(output)/d(this), filled by Backward

	children   []*Value
	localGrads []float64 // ∂self/∂children[i]
}

// NewValue creates a leaf node.
func NewValue(data float64) *Value {
	return &Value{Data: data}
}

// Scalar is an alias for NewValue, used for constants.
func Scalar(data float64) *Value {
	return NewValue(data)
}

// Zeros returns n fresh leaf nodes holding 0.
func Zeros(n int) []*Value {
	out := make([]*Value, n)
	for i := range out {
		out[i] = NewValue(0)
	}
	return out
}

// Data extracts the forward values of vs.
func Data(vs []*Value) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.Data
	}
	return out
}

func node(data float64, children []*Value, localGrads []float64) *Value {
	return &Value{Data: data, children: children, localGrads: localGrads}
}

// ZeroGrad resets the gradient of this Value to 0.
func (v *Value) ZeroGrad() {
	v.Grad = 0
}

// Backward sets v.Grad to 1 and propagates gradients to every node reachable
// from v. Gradients accumulate, so parameters must be zeroed between steps.
func (v *Value) Backward() {
	topo := topoSort(v)
	v.Grad = 1
	for _, n := range topo {
		for i, child := range n.children {
			child.Grad += n.Grad * n.localGrads[i]
		}
	}
}

// topoSort returns the nodes reachable from root, root first, every node
// before its children. It uses an explicit stack so deep recurrent graphs do
// not grow the goroutine stack.
func topoSort(root *Value) []*Value {
	type frame struct {
		node *Value
		done bool
	}

	order := make([]*Value, 0, 4096)
	visited := make(map[*Value]struct{}, 4096)
	stack := []frame{{root, false}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.done {
			order = append(order, f.node)
			continue
		}
		if _, ok := visited[f.node]; ok {
			continue
		}
		visited[f.node] = struct{}{}

		stack = append(stack, frame{f.node, true})
		for _, child := range f.node.children {
			if _, ok := visited[child]; !ok {
				stack = append(stack, frame{child, false})
			}
		}
	}

	// order is post-order (children first); reverse it.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

package model

import "math"

// Value represents a scalar for autograd. Children and LocalGrads are
// parallel: LocalGrads[i] is d(this)/d(Children[i]) at forward time.
type Value struct {
	Data       float64
	Grad       float64
	Children   []*Value
	LocalGrads []float64
}

// V creates a leaf.
func V(x float64) *Value {
	return &Value{Data: x}
}

func Add(a, b *Value) *Value {
	return &Value{Data: a.Data + b.Data, Children: []*Value{a, b}, LocalGrads: []float64{1, 1}}
}

func Mul(a, b *Value) *Value {
	return &Value{Data: a.Data * b.Data, Children: []*Value{a, b}, LocalGrads: []float64{b.Data, a.Data}}
}

// Pow raises a to a constant exponent.
func Pow(a *Value, p float64) *Value {
	return &Value{Data: math.Pow(a.Data, p), Children: []*Value{a}, LocalGrads: []float64{p * math.Pow(a.Data, p-1)}}
}

func Log(a *Value) *Value {
	return &Value{Data: math.Log(a.Data), Children: []*Value{a}, LocalGrads: []float64{1 / a.Data}}
}

func Exp(a *Value) *Value {
	ed := math.Exp(a.Data)
	return &Value{Data: ed, Children: []*Value{a}, LocalGrads: []float64{ed}}
}

func ReLU(a *Value) *Value {
	if a.Data > 0 {
		return &Value{Data: a.Data, Children: []*Value{a}, LocalGrads: []float64{1}}
	}
	return &Value{Data: 0, Children: []*Value{a}, LocalGrads: []float64{0}}
}

// Composites are built from the primitives above so they round the same
// way a hand-written composition would.

func Neg(a *Value) *Value {
	return Mul(a, V(-1))
}

func Sub(a, b *Value) *Value {
	return Add(a, Neg(b))
}

func Div(a, b *Value) *Value {
	return Mul(a, Pow(b, -1))
}

// Backward accumulates d(out)/d(node) into Grad for every node reachable
// from out. Grads are added, never reset: callers zero parameter leaves
// between passes.
func Backward(out *Value) {
	topo := topoSort(out)
	out.Grad = 1
	for i := len(topo) - 1; i >= 0; i-- {
		v := topo[i]
		for j, ch := range v.Children {
			ch.Grad += v.LocalGrads[j] * v.Grad
		}
	}
}

// topoSort returns the nodes reachable from root in post-order. It walks an
// explicit stack so long documents cannot exhaust the goroutine stack.
func topoSort(root *Value) []*Value {
	type frame struct {
		v    *Value
		next int
	}
	var topo []*Value
	visited := map[*Value]bool{root: true}
	stack := []frame{{v: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.v.Children) {
			ch := top.v.Children[top.next]
			top.next++
			if !visited[ch] {
				visited[ch] = true
				stack = append(stack, frame{v: ch})
			}
			continue
		}
		topo = append(topo, top.v)
		stack = stack[:len(stack)-1]
	}
	return topo
}

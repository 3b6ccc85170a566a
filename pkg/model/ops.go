package model

// RMSNormEps keeps rmsnorm finite on an all-zero input.
const RMSNormEps = 1e-5

// Linear computes w @ x; w is [nout][nin].
func Linear(x []*Value, w Matrix) []*Value {
	out := make([]*Value, len(w))
	for o, row := range w {
		s := V(0)
		for i := 0; i < len(x); i++ {
			s = Add(s, Mul(row[i], x[i]))
		}
		out[o] = s
	}
	return out
}

// Softmax subtracts the max logit as a constant before exponentiating; the
// normalizing sum stays in the graph.
func Softmax(logits []*Value) []*Value {
	maxVal := logits[0].Data
	for i := 1; i < len(logits); i++ {
		if logits[i].Data > maxVal {
			maxVal = logits[i].Data
		}
	}
	exps := make([]*Value, len(logits))
	total := V(0)
	for i, l := range logits {
		e := Exp(Sub(l, V(maxVal)))
		exps[i] = e
		total = Add(total, e)
	}
	probs := make([]*Value, len(logits))
	for i := range exps {
		probs[i] = Div(exps[i], total)
	}
	return probs
}

func RMSNorm(x []*Value) []*Value {
	ms := V(0)
	for _, xi := range x {
		ms = Add(ms, Mul(xi, xi))
	}
	ms = Div(ms, V(float64(len(x))))
	scale := Pow(Add(ms, V(RMSNormEps)), -0.5)
	out := make([]*Value, len(x))
	for i, xi := range x {
		out[i] = Mul(xi, scale)
	}
	return out
}

// Data copies the forward values out of a vector.
func Data(xs []*Value) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x.Data
	}
	return out
}

package model

import (
	"fmt"
	"math/rand/v2"
)

// Matrix is row-major: rows are the output dimension.
type Matrix [][]*Value

func newMatrix(nout, nin int, std float64, rng *rand.Rand) Matrix {
	m := make(Matrix, nout)
	for o := 0; o < nout; o++ {
		row := make([]*Value, nin)
		for i := 0; i < nin; i++ {
			x := 0.0
			if rng != nil {
				x = rng.NormFloat64() * std
			}
			row[i] = V(x)
		}
		m[o] = row
	}
	return m
}

func (m Matrix) Rows() int { return len(m) }

func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Layer holds the weights of one transformer block.
type Layer struct {
	AttnWQ Matrix
	AttnWK Matrix
	AttnWV Matrix
	AttnWO Matrix
	MLPFC1 Matrix
	MLPFC2 Matrix
}

// Params is the parameter store. Its flat order is
// wte, wpe, lm_head, then per layer attn_wq, attn_wk, attn_wv, attn_wo,
// mlp_fc1, mlp_fc2, each row-major. Persistence depends on that order.
type Params struct {
	WTE    Matrix
	WPE    Matrix
	LMHead Matrix
	Layers []Layer

	flat []*Value
}

// NamedMatrix pairs a matrix with its persistence name.
type NamedMatrix struct {
	Name   string
	Matrix Matrix
}

// NewParams draws every weight from N(0, std) in flat order. A nil rng
// leaves all weights at zero.
func NewParams(cfg Config, vocabSize int, rng *rand.Rand) *Params {
	std := cfg.initStd()
	p := &Params{
		WTE:    newMatrix(vocabSize, cfg.NEmbd, std, rng),
		WPE:    newMatrix(cfg.BlockSize, cfg.NEmbd, std, rng),
		LMHead: newMatrix(vocabSize, cfg.NEmbd, std, rng),
		Layers: make([]Layer, cfg.NLayer),
	}
	for i := range p.Layers {
		p.Layers[i] = Layer{
			AttnWQ: newMatrix(cfg.NEmbd, cfg.NEmbd, std, rng),
			AttnWK: newMatrix(cfg.NEmbd, cfg.NEmbd, std, rng),
			AttnWV: newMatrix(cfg.NEmbd, cfg.NEmbd, std, rng),
			AttnWO: newMatrix(cfg.NEmbd, cfg.NEmbd, std, rng),
			MLPFC1: newMatrix(4*cfg.NEmbd, cfg.NEmbd, std, rng),
			MLPFC2: newMatrix(cfg.NEmbd, 4*cfg.NEmbd, std, rng),
		}
	}
	for _, nm := range p.Matrices() {
		for _, row := range nm.Matrix {
			p.flat = append(p.flat, row...)
		}
	}
	return p
}

// Matrices lists every matrix in flat order.
func (p *Params) Matrices() []NamedMatrix {
	out := []NamedMatrix{
		{"wte", p.WTE},
		{"wpe", p.WPE},
		{"lm_head", p.LMHead},
	}
	for i, l := range p.Layers {
		out = append(out,
			NamedMatrix{fmt.Sprintf("layer%d.attn_wq", i), l.AttnWQ},
			NamedMatrix{fmt.Sprintf("layer%d.attn_wk", i), l.AttnWK},
			NamedMatrix{fmt.Sprintf("layer%d.attn_wv", i), l.AttnWV},
			NamedMatrix{fmt.Sprintf("layer%d.attn_wo", i), l.AttnWO},
			NamedMatrix{fmt.Sprintf("layer%d.mlp_fc1", i), l.MLPFC1},
			NamedMatrix{fmt.Sprintf("layer%d.mlp_fc2", i), l.MLPFC2},
		)
	}
	return out
}

// All returns the parameter leaves in flat order. The slice is shared.
func (p *Params) All() []*Value {
	return p.flat
}

func (p *Params) Len() int {
	return len(p.flat)
}

func (p *Params) ZeroGrad() {
	for _, v := range p.flat {
		v.Grad = 0
	}
}

// Values exports the leaf data in flat order.
func (p *Params) Values() []float64 {
	return Data(p.flat)
}

// SetValues assigns data in flat order. A length mismatch leaves every
// leaf untouched.
func (p *Params) SetValues(data []float64) error {
	if len(data) != len(p.flat) {
		return fmt.Errorf("%w: got %d values, model has %d", ErrParamCountMismatch, len(data), len(p.flat))
	}
	for i, v := range p.flat {
		v.Data = data[i]
	}
	return nil
}

package model

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// SampleWeighted draws an index with probability proportional to its weight.
// Indices with zero weight are never drawn.
func SampleWeighted(weights []float64, rng *rand.Rand) int {
	total := floats.Sum(weights)
	r := rng.Float64() * total
	acc := 0.0
	last := len(weights) - 1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if r < acc {
			return i
		}
	}
	return last
}

// CharProb is one entry of a displayed distribution; Prob is in percent.
type CharProb struct {
	Char string  `json:"char"`
	Prob float64 `json:"prob"`
}

// Distribution labels each probability with its character and rounds it
// to two decimals of a percent.
func (v *Vocab) Distribution(probs []float64) []CharProb {
	out := make([]CharProb, len(probs))
	for i, p := range probs {
		out[i] = CharProb{Char: v.Label(i), Prob: scalar.Round(p*100, 2)}
	}
	return out
}

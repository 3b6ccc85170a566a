package model

import (
	"math"
	"math/rand/v2"
	"testing"
)

// constSource makes Float64 return the same value on every draw.
type constSource uint64

func (c constSource) Uint64() uint64 { return uint64(c) }

func TestSampleWeighted(t *testing.T) {
	rng := NewRand(1)
	for i := 0; i < 100; i++ {
		if got := SampleWeighted([]float64{0, 0, 1, 0}, rng); got != 2 {
			t.Fatalf("one-hot sample = %d", got)
		}
	}

	const n = 20000
	counts := make([]int, 3)
	for i := 0; i < n; i++ {
		counts[SampleWeighted([]float64{1, 2, 1}, rng)]++
	}
	want := []float64{0.25, 0.5, 0.25}
	for i, c := range counts {
		if math.Abs(float64(c)/n-want[i]) > 0.02 {
			t.Fatalf("frequencies %v far from %v", counts, want)
		}
	}
}

func TestSampleWeightedSkipsEmptyBuckets(t *testing.T) {
	low := rand.New(constSource(0))
	if got := SampleWeighted([]float64{0, 0, 1, 0}, low); got != 2 {
		t.Fatalf("draw of 0 = %d, want 2", got)
	}
	if got := SampleWeighted([]float64{0, 0.5, 0.5}, low); got != 1 {
		t.Fatalf("draw of 0 = %d, want 1", got)
	}
	high := rand.New(constSource(math.MaxUint64))
	if got := SampleWeighted([]float64{0.5, 0.5, 0}, high); got != 1 {
		t.Fatalf("draw near 1 = %d, want 1", got)
	}
}

func TestDistribution(t *testing.T) {
	v, _ := NewVocab([]string{"ab"})
	got := v.Distribution([]float64{0.123456, 0.5, 0.376544})
	want := []CharProb{{"a", 12.35}, {"b", 50}, {"BOS", 37.65}}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i := range want {
		if got[i].Char != want[i].Char || math.Abs(got[i].Prob-want[i].Prob) > 1e-9 {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

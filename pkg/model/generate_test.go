package model

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestGenerateFixedModel(t *testing.T) {
	m := newFixedModel(t, 6, 0)
	got, err := m.Generate("", 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if got != strings.Repeat("a", 6) {
		t.Fatalf("Generate = %q", got)
	}

	got, err = m.Generate("cb", 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if got != "cbaaaa" {
		t.Fatalf("Generate(cb) = %q", got)
	}

	toks := m.Vocab.Tokenize("ab")
	if len(toks) != 2 || toks[0].Char != "a" || *toks[0].ID != 0 || toks[1].Char != "b" || *toks[1].ID != 1 {
		t.Fatalf("Tokenize(ab) = %+v", toks)
	}
}

func TestGenerateStopsOnBOS(t *testing.T) {
	m := newFixedModel(t, 6, 3)
	var events []StepEvent
	got, err := m.GenerateStream("", 1.0, func(ev StepEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("Generate = %q, want empty", got)
	}
	if len(events) != 2 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].TokenID != m.Vocab.BOS() || events[0].Char != "" || events[0].Done {
		t.Fatalf("BOS event = %+v", events[0])
	}
	if !events[1].Done || events[1].Word != "" {
		t.Fatalf("final event = %+v", events[1])
	}
}

func TestGenerateTerminates(t *testing.T) {
	m := newTestModel(t, smallConfig(), 40)
	for _, temp := range []float64{0.1, 0.5, 1, 3} {
		for i := 0; i < 20; i++ {
			out, err := m.Generate("", temp)
			if err != nil {
				t.Fatal(err)
			}
			runes := []rune(out)
			if len(runes) > m.Config.BlockSize {
				t.Fatalf("output %q longer than block size", out)
			}
			if _, err := m.Vocab.Encode(out); err != nil {
				t.Fatalf("output %q has a non-vocabulary character: %v", out, err)
			}
		}
	}
}

func TestGenerateRejectsBeforeSampling(t *testing.T) {
	m := newTestModel(t, smallConfig(), 40)
	ref := newTestModel(t, smallConfig(), 40)

	calls := 0
	_, err := m.GenerateStream("ab!c", 0.5, func(StepEvent) error {
		calls++
		return nil
	})
	var uce *UnknownCharError
	if !errors.As(err, &uce) || uce.Char != '!' || uce.Position != 2 {
		t.Fatalf("err = %v", err)
	}
	if calls != 0 {
		t.Fatalf("callback ran %d times", calls)
	}
	if m.Rand().Uint64() != ref.Rand().Uint64() {
		t.Fatalf("rejected prefix consumed random numbers")
	}

	for _, temp := range []float64{0, -1, math.NaN()} {
		if _, err := m.Generate("", temp); !errors.Is(err, ErrInvalidTemperature) {
			t.Fatalf("temperature %v: err = %v", temp, err)
		}
	}

	long := strings.Repeat("a", m.Config.BlockSize+1)
	if _, err := m.Generate(long, 0.5); !errors.Is(err, ErrPrefixTooLong) {
		t.Fatalf("long prefix: err = %v", err)
	}
	full := strings.Repeat("a", m.Config.BlockSize)
	if out, err := m.Generate(full, 0.5); err != nil || out != full {
		t.Fatalf("full prefix: %q, %v", out, err)
	}
}

func TestGenerateDeterministicPerSeed(t *testing.T) {
	a := newTestModel(t, smallConfig(), 40)
	b := newTestModel(t, smallConfig(), 40)
	for i := 0; i < 10; i++ {
		x, err := a.Generate("em", 0.8)
		if err != nil {
			t.Fatal(err)
		}
		y, _ := b.Generate("em", 0.8)
		if x != y {
			t.Fatalf("sample %d: %q != %q", i, x, y)
		}
		if !strings.HasPrefix(x, "em") {
			t.Fatalf("output %q lost its prefix", x)
		}
	}
}

func TestGenerateStreamEvents(t *testing.T) {
	m := newTestModel(t, smallConfig(), 9)
	var events []StepEvent
	out, err := m.GenerateStream("li", 1.0, func(ev StepEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) < 2 {
		t.Fatalf("events = %+v", events)
	}
	last := events[len(events)-1]
	if !last.Done || last.Word != out {
		t.Fatalf("final event = %+v, output %q", last, out)
	}
	for i, ev := range events[:len(events)-1] {
		if ev.Done {
			t.Fatalf("event %d marked done early", i)
		}
		if ev.Position != 2+i {
			t.Fatalf("event %d at position %d", i, ev.Position)
		}
		if len(ev.Probs) != m.Vocab.Size() {
			t.Fatalf("event %d has %d probs", i, len(ev.Probs))
		}
		if !strings.HasPrefix(out, ev.Word) || !strings.HasPrefix(ev.Word, "li") {
			t.Fatalf("event %d word %q inconsistent with %q", i, ev.Word, out)
		}
	}

	stop := errors.New("stop")
	n := 0
	_, err = m.GenerateStream("", 1.0, func(StepEvent) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("callback error not propagated: %v after %d calls", err, n)
	}
}

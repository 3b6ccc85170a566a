package model

import "testing"

var testNames = []string{
	"emma", "olivia", "ava", "isabella", "sophia", "mia", "amelia", "harper",
	"evelyn", "abigail", "emily", "ella", "elizabeth", "camila", "luna", "sofia",
	"avery", "mila", "aria", "scarlett", "penelope", "layla", "chloe", "victoria",
	"madison", "eleanor", "grace", "nora", "riley", "zoey", "hannah", "hazel",
}

func smallConfig() Config {
	return Config{NLayer: 1, NEmbd: 8, NHead: 2, BlockSize: 8}
}

func newTestModel(t *testing.T, cfg Config, seed uint64) *Model {
	t.Helper()
	vocab, err := NewVocab(testNames)
	if err != nil {
		t.Fatalf("NewVocab: %v", err)
	}
	m, err := NewSeeded(cfg, vocab, seed)
	if err != nil {
		t.Fatalf("NewSeeded: %v", err)
	}
	return m
}

// newFixedModel returns a model over {a,b,c} whose logits are about 10
// for winner and -10 elsewhere at every position.
func newFixedModel(t *testing.T, blockSize, winner int) *Model {
	t.Helper()
	vocab, err := NewVocab([]string{"cab"})
	if err != nil {
		t.Fatalf("NewVocab: %v", err)
	}
	m, err := NewSeeded(Config{NLayer: 1, NEmbd: 4, NHead: 2, BlockSize: blockSize}, vocab, 7)
	if err != nil {
		t.Fatalf("NewSeeded: %v", err)
	}
	if err := m.Params.SetValues(make([]float64, m.Params.Len())); err != nil {
		t.Fatalf("SetValues: %v", err)
	}
	for _, row := range m.Params.WTE {
		row[0].Data = 1
	}
	// rmsnorm turns [1,0,0,0] into ~[2,0,0,0]
	for i, row := range m.Params.LMHead {
		if i == winner {
			row[0].Data = 5
		} else {
			row[0].Data = -5
		}
	}
	return m
}

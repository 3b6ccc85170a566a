package model

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"
)

const CheckpointVersion = 2

// Checkpoint is everything needed to rebuild a Model. Params is the flat
// parameter list in Params order.
type Checkpoint struct {
	Version   int       `json:"version"`
	CreatedAt string    `json:"created_at"`
	Config    Config    `json:"config"`
	Vocab     []string  `json:"vocab"`
	Params    []float64 `json:"params"`
}

func (m *Model) Checkpoint() Checkpoint {
	return Checkpoint{
		Version:   CheckpointVersion,
		CreatedAt: time.Now().Format(time.RFC3339),
		Config:    m.Config,
		Vocab:     m.Vocab.Strings(),
		Params:    m.Params.Values(),
	}
}

// FromCheckpoint rebuilds a model; rng becomes its sampling generator.
func FromCheckpoint(ckpt Checkpoint, rng *rand.Rand) (*Model, error) {
	vocab, err := VocabFromStrings(ckpt.Vocab)
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint: %w", err)
	}
	if err := ckpt.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint: %w", err)
	}
	if rng == nil {
		return nil, fmt.Errorf("nil random generator")
	}
	params := NewParams(ckpt.Config, vocab.Size(), nil)
	if err := params.SetValues(ckpt.Params); err != nil {
		return nil, err
	}
	return &Model{Config: ckpt.Config, Vocab: vocab, Params: params, rng: rng}, nil
}

func SaveCheckpoint(path string, ckpt Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func LoadCheckpoint(path string) (Checkpoint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, err
	}
	var ckpt Checkpoint
	if err := json.Unmarshal(b, &ckpt); err != nil {
		return Checkpoint{}, err
	}
	if err := ckpt.Config.Validate(); err != nil {
		return Checkpoint{}, fmt.Errorf("invalid checkpoint: %w", err)
	}
	if len(ckpt.Vocab) == 0 {
		return Checkpoint{}, fmt.Errorf("invalid checkpoint: empty vocab")
	}
	return ckpt, nil
}

// WriteParams encodes the flat parameter list as a JSON array.
func WriteParams(w io.Writer, p *Params) error {
	return json.NewEncoder(w).Encode(p.Values())
}

// ReadParams decodes a JSON array written by WriteParams. Nothing is
// assigned unless the length matches exactly.
func ReadParams(r io.Reader, p *Params) error {
	var data []float64
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return p.SetValues(data)
}

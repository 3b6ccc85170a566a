package model

import (
	"fmt"
	"slices"
)

// StepEvent describes one sampled position, or the end of generation when
// Done is set.
type StepEvent struct {
	Position int
	// Probs is the temperature-scaled distribution the token was drawn from.
	Probs   []float64
	TokenID int
	// Char is empty when BOS was sampled.
	Char string
	// Word is the output so far, prefix included.
	Word string
	Done bool
}

// Generate continues prefix until BOS is sampled or the context is full.
// The returned string starts with prefix.
func (m *Model) Generate(prefix string, temperature float64) (string, error) {
	return m.GenerateStream(prefix, temperature, nil)
}

// GenerateStream is Generate reporting every sampled position to fn, then a
// final Done event carrying the result. An error from fn stops generation
// and is returned with the output produced so far.
func (m *Model) GenerateStream(prefix string, temperature float64, fn func(StepEvent) error) (string, error) {
	if !(temperature > 0) {
		return "", fmt.Errorf("%w (got %v)", ErrInvalidTemperature, temperature)
	}
	ids, err := m.Vocab.Encode(prefix)
	if err != nil {
		return "", err
	}
	blockSize := m.Config.BlockSize
	if len(ids) > blockSize {
		return "", fmt.Errorf("%w: %d > %d", ErrPrefixTooLong, len(ids), blockSize)
	}

	cache := m.NewCache()
	for pos, id := range ids {
		_ = m.Forward(id, pos, cache)
	}
	bos := m.Vocab.BOS()
	tokenID := bos
	if len(ids) > 0 {
		tokenID = ids[len(ids)-1]
	}

	out := slices.Clone(ids)
	temp := V(temperature)
	pos := len(ids)
	for ; pos < blockSize; pos++ {
		logits := m.Forward(tokenID, pos, cache)
		scaled := make([]*Value, len(logits))
		for i, l := range logits {
			scaled[i] = Div(l, temp)
		}
		probs := Data(Softmax(scaled))
		tokenID = SampleWeighted(probs, m.rng)

		ev := StepEvent{Position: pos, Probs: probs, TokenID: tokenID}
		if r, ok := m.Vocab.Char(tokenID); ok {
			out = append(out, tokenID)
			ev.Char = string(r)
		}
		ev.Word = m.Vocab.Decode(out)
		if fn != nil {
			if err := fn(ev); err != nil {
				return ev.Word, err
			}
		}
		if tokenID == bos {
			break
		}
	}

	result := m.Vocab.Decode(out)
	if fn != nil {
		if err := fn(StepEvent{Position: pos, TokenID: bos, Word: result, Done: true}); err != nil {
			return result, err
		}
	}
	return result, nil
}

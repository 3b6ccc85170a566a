package model

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCorpus        = errors.New("empty corpus: cannot build a vocabulary")
	ErrParamCountMismatch = errors.New("parameter count mismatch")
	ErrInvalidConfig      = errors.New("invalid model config")
	ErrInvalidTemperature = errors.New("temperature must be > 0")
	ErrPrefixTooLong      = errors.New("prefix longer than block size")
	ErrTrainingDone       = errors.New("training already ran all steps")
)

// UnknownCharError reports a character that is not in the vocabulary.
// Position counts runes, not bytes.
type UnknownCharError struct {
	Char     rune
	Position int
}

func (e *UnknownCharError) Error() string {
	return fmt.Sprintf("unknown character %q at position %d", e.Char, e.Position)
}

package model

import (
	"fmt"
	"sort"
)

// Vocab is a character vocabulary plus a BOS id equal to Len().
type Vocab struct {
	chars []rune
	ids   map[rune]int
}

// NewVocab collects the sorted set of distinct characters across docs.
func NewVocab(docs []string) (*Vocab, error) {
	charset := map[rune]bool{}
	for _, d := range docs {
		for _, r := range d {
			charset[r] = true
		}
	}
	if len(charset) == 0 {
		return nil, ErrEmptyCorpus
	}
	uchars := make([]rune, 0, len(charset))
	for r := range charset {
		uchars = append(uchars, r)
	}
	sort.Slice(uchars, func(i, j int) bool { return uchars[i] < uchars[j] })
	return newVocab(uchars), nil
}

// VocabFromStrings rebuilds a vocabulary stored as one-rune strings, in
// the stored order.
func VocabFromStrings(ss []string) (*Vocab, error) {
	if len(ss) == 0 {
		return nil, ErrEmptyCorpus
	}
	uchars := make([]rune, 0, len(ss))
	seen := make(map[rune]bool, len(ss))
	for _, s := range ss {
		r := []rune(s)
		if len(r) != 1 {
			return nil, fmt.Errorf("invalid vocab token %q: expected one rune", s)
		}
		if seen[r[0]] {
			return nil, fmt.Errorf("invalid vocab: duplicate token %q", s)
		}
		seen[r[0]] = true
		uchars = append(uchars, r[0])
	}
	return newVocab(uchars), nil
}

func newVocab(uchars []rune) *Vocab {
	ids := make(map[rune]int, len(uchars))
	for i, r := range uchars {
		ids[r] = i
	}
	return &Vocab{chars: uchars, ids: ids}
}

// Len is the number of characters, BOS excluded.
func (v *Vocab) Len() int { return len(v.chars) }

// Size is the number of logits the model produces: characters plus BOS.
func (v *Vocab) Size() int { return len(v.chars) + 1 }

func (v *Vocab) BOS() int { return len(v.chars) }

func (v *Vocab) Chars() []rune {
	return append([]rune(nil), v.chars...)
}

func (v *Vocab) ID(r rune) (int, bool) {
	id, ok := v.ids[r]
	return id, ok
}

func (v *Vocab) Char(id int) (rune, bool) {
	if id < 0 || id >= len(v.chars) {
		return 0, false
	}
	return v.chars[id], true
}

// Label renders an id for display; BOS shows as "BOS".
func (v *Vocab) Label(id int) string {
	if r, ok := v.Char(id); ok {
		return string(r)
	}
	if id == v.BOS() {
		return "BOS"
	}
	return "?"
}

// Encode maps every character of s to its id.
func (v *Vocab) Encode(s string) ([]int, error) {
	out := make([]int, 0, len(s))
	pos := 0
	for _, r := range s {
		id, ok := v.ids[r]
		if !ok {
			return nil, &UnknownCharError{Char: r, Position: pos}
		}
		out = append(out, id)
		pos++
	}
	return out, nil
}

// EncodeDoc wraps a document as [BOS] + chars + [BOS].
func (v *Vocab) EncodeDoc(doc string) ([]int, error) {
	ids, err := v.Encode(doc)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(ids)+2)
	out = append(out, v.BOS())
	out = append(out, ids...)
	return append(out, v.BOS()), nil
}

// Decode drops ids that are not characters (BOS included).
func (v *Vocab) Decode(ids []int) string {
	out := make([]rune, 0, len(ids))
	for _, id := range ids {
		if r, ok := v.Char(id); ok {
			out = append(out, r)
		}
	}
	return string(out)
}

// Token is one entry of a tokenization; ID is nil for unknown characters.
type Token struct {
	Char string `json:"char"`
	ID   *int   `json:"id"`
}

// Tokenize never fails: unknown characters come back with a nil ID.
func (v *Vocab) Tokenize(s string) []Token {
	out := make([]Token, 0, len(s))
	for _, r := range s {
		tok := Token{Char: string(r)}
		if id, ok := v.ids[r]; ok {
			tok.ID = &id
		}
		out = append(out, tok)
	}
	return out
}

// Strings is the vocabulary as one-rune strings, for checkpoints.
func (v *Vocab) Strings() []string {
	out := make([]string, len(v.chars))
	for i, r := range v.chars {
		out[i] = string(r)
	}
	return out
}

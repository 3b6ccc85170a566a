// Package dataset loads the line-per-document training corpus.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/Hrithik-12/Microgpt/pkg/model"
)

// Load reads path as a corpus. A missing file or a file without any
// non-blank line is an error.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	docs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// Read returns the trimmed, lower-cased non-blank lines of r.
func Read(r io.Reader) ([]string, error) {
	var docs []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.ToLower(strings.TrimSpace(s.Text()))
		if line == "" {
			continue
		}
		docs = append(docs, line)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, model.ErrEmptyCorpus
	}
	return docs, nil
}

func Shuffle(docs []string, rng *rand.Rand) {
	rng.Shuffle(len(docs), func(i, j int) { docs[i], docs[j] = docs[j], docs[i] })
}

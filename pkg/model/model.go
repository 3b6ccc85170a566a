package model

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// DefaultInitStd is the standard deviation of the initial weights.
const DefaultInitStd = 0.08

type Config struct {
	NLayer    int     `json:"n_layer"`
	NEmbd     int     `json:"n_embd"`
	NHead     int     `json:"n_head"`
	BlockSize int     `json:"block_size"`
	InitStd   float64 `json:"init_std,omitempty"`
}

func DefaultConfig() Config {
	return Config{NLayer: 1, NEmbd: 16, NHead: 4, BlockSize: 16, InitStd: DefaultInitStd}
}

func (c Config) Validate() error {
	if c.NLayer < 1 || c.NEmbd < 1 || c.NHead < 1 || c.BlockSize < 1 {
		return fmt.Errorf("%w: need n_layer, n_embd, n_head, block_size >= 1 (got %d, %d, %d, %d)",
			ErrInvalidConfig, c.NLayer, c.NEmbd, c.NHead, c.BlockSize)
	}
	if c.NEmbd%c.NHead != 0 {
		return fmt.Errorf("%w: n_embd (%d) must be divisible by n_head (%d)", ErrInvalidConfig, c.NEmbd, c.NHead)
	}
	if c.InitStd < 0 {
		return fmt.Errorf("%w: init_std must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func (c Config) HeadDim() int {
	return c.NEmbd / c.NHead
}

func (c Config) initStd() float64 {
	if c.InitStd == 0 {
		return DefaultInitStd
	}
	return c.InitStd
}

// KVCache holds, per layer, the key and value vectors of every position
// processed so far in one sequence.
type KVCache struct {
	Keys   [][][]*Value
	Values [][][]*Value
}

func NewKVCache(nLayer int) *KVCache {
	return &KVCache{
		Keys:   make([][][]*Value, nLayer),
		Values: make([][][]*Value, nLayer),
	}
}

// Len is the number of positions appended so far.
func (c *KVCache) Len() int {
	if len(c.Keys) == 0 {
		return 0
	}
	return len(c.Keys[0])
}

// Model bundles the config, vocabulary, parameter store and the random
// generator used for initialization and sampling. It does no locking:
// training must not overlap with anything else using the same Model, and
// concurrent generation needs external serialization because of the shared
// generator.
type Model struct {
	Config Config
	Vocab  *Vocab
	Params *Params

	rng *rand.Rand
}

// New initializes a model with Gaussian weights drawn from rng.
func New(cfg Config, vocab *Vocab, rng *rand.Rand) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vocab == nil || vocab.Len() == 0 {
		return nil, ErrEmptyCorpus
	}
	if rng == nil {
		return nil, fmt.Errorf("nil random generator")
	}
	return &Model{
		Config: cfg,
		Vocab:  vocab,
		Params: NewParams(cfg, vocab.Size(), rng),
		rng:    rng,
	}, nil
}

// NewSeeded is New with a PCG generator seeded from seed.
func NewSeeded(cfg Config, vocab *Vocab, seed uint64) (*Model, error) {
	return New(cfg, vocab, NewRand(seed))
}

// NewRand returns the generator every binary uses for a given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func (m *Model) Rand() *rand.Rand {
	return m.rng
}

func (m *Model) NewCache() *KVCache {
	return NewKVCache(m.Config.NLayer)
}

// Forward evaluates one position and returns logits over the vocabulary
// (BOS included). It appends this position's keys and values to cache, so
// posID must equal cache.Len() and stay below BlockSize.
func (m *Model) Forward(tokenID, posID int, cache *KVCache) []*Value {
	cfg := m.Config
	p := m.Params
	if posID != cache.Len() {
		panic(fmt.Sprintf("model: position %d out of order, cache holds %d", posID, cache.Len()))
	}
	if posID >= cfg.BlockSize {
		panic(fmt.Sprintf("model: position %d exceeds block size %d", posID, cfg.BlockSize))
	}
	if tokenID < 0 || tokenID >= p.WTE.Rows() {
		panic(fmt.Sprintf("model: token id %d out of range", tokenID))
	}
	headDim := cfg.HeadDim()
	scale := V(math.Sqrt(float64(headDim)))

	tokEmb := p.WTE[tokenID]
	posEmb := p.WPE[posID]
	x := make([]*Value, len(tokEmb))
	for i := range tokEmb {
		x[i] = Add(tokEmb[i], posEmb[i])
	}
	x = RMSNorm(x)

	for li, layer := range p.Layers {
		xResidual := x
		x = RMSNorm(x)
		q := Linear(x, layer.AttnWQ)
		k := Linear(x, layer.AttnWK)
		v := Linear(x, layer.AttnWV)
		cache.Keys[li] = append(cache.Keys[li], k)
		cache.Values[li] = append(cache.Values[li], v)
		keys, values := cache.Keys[li], cache.Values[li]

		xAttn := make([]*Value, 0, cfg.NEmbd)
		for h := 0; h < cfg.NHead; h++ {
			hs := h * headDim
			qH := q[hs : hs+headDim]

			attnLogits := make([]*Value, len(keys))
			for t := range keys {
				kH := keys[t][hs : hs+headDim]
				score := V(0)
				for j := 0; j < headDim; j++ {
					score = Add(score, Mul(qH[j], kH[j]))
				}
				attnLogits[t] = Div(score, scale)
			}
			attnWeights := Softmax(attnLogits)

			headOut := make([]*Value, headDim)
			for j := 0; j < headDim; j++ {
				s := V(0)
				for t := range values {
					s = Add(s, Mul(attnWeights[t], values[t][hs+j]))
				}
				headOut[j] = s
			}
			xAttn = append(xAttn, headOut...)
		}

		x = Linear(xAttn, layer.AttnWO)
		for i := range x {
			x[i] = Add(x[i], xResidual[i])
		}

		xResidual = x
		x = RMSNorm(x)
		x = Linear(x, layer.MLPFC1)
		for i := range x {
			x[i] = ReLU(x[i])
		}
		x = Linear(x, layer.MLPFC2)
		for i := range x {
			x[i] = Add(x[i], xResidual[i])
		}
	}

	return Linear(x, p.LMHead)
}

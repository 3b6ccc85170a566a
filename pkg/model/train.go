package model

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// LossWindow is how many steps the training report averages at each end.
const LossWindow = 50

type AdamConfig struct {
	LearningRate float64 `json:"learning_rate"`
	Beta1        float64 `json:"beta1"`
	Beta2        float64 `json:"beta2"`
	Eps          float64 `json:"eps"`
	NumSteps     int     `json:"num_steps"`
}

func DefaultAdamConfig() AdamConfig {
	return AdamConfig{LearningRate: 0.01, Beta1: 0.85, Beta2: 0.99, Eps: 1e-8, NumSteps: 1000}
}

func (c AdamConfig) Validate() error {
	if c.NumSteps < 1 {
		return fmt.Errorf("invalid NUM_STEPS: must be >=1")
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("invalid LEARNING_RATE: must be > 0")
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("invalid Adam betas: need 0 <= beta < 1")
	}
	return nil
}

// Adam keeps the first and second moment buffers, one slot per parameter
// leaf in flat order.
type Adam struct {
	cfg AdamConfig
	m   []float64
	v   []float64
}

func NewAdam(n int, cfg AdamConfig) *Adam {
	return &Adam{cfg: cfg, m: make([]float64, n), v: make([]float64, n)}
}

// LearningRate decays linearly from the base rate to zero over NumSteps.
func (a *Adam) LearningRate(step int) float64 {
	return a.cfg.LearningRate * (1 - float64(step)/float64(a.cfg.NumSteps))
}

// Step applies one update for 0-based step and zeroes every grad.
func (a *Adam) Step(params []*Value, step int) {
	c := a.cfg
	lrT := a.LearningRate(step)
	bc1 := 1 - math.Pow(c.Beta1, float64(step+1))
	bc2 := 1 - math.Pow(c.Beta2, float64(step+1))
	for i, p := range params {
		a.m[i] = c.Beta1*a.m[i] + (1-c.Beta1)*p.Grad
		a.v[i] = c.Beta2*a.v[i] + (1-c.Beta2)*p.Grad*p.Grad
		mHat := a.m[i] / bc1
		vHat := a.v[i] / bc2
		p.Data -= lrT * mHat / (math.Sqrt(vHat) + c.Eps)
		p.Grad = 0
	}
}

// Loss runs one sequence through a fresh cache and returns the mean
// negative log-likelihood of each next token. At most BlockSize positions
// are evaluated.
func (m *Model) Loss(tokens []int) (*Value, int) {
	n := len(tokens) - 1
	if n > m.Config.BlockSize {
		n = m.Config.BlockSize
	}
	cache := m.NewCache()
	loss := V(0)
	for posID := 0; posID < n; posID++ {
		logits := m.Forward(tokens[posID], posID, cache)
		probs := Softmax(logits)
		loss = Add(loss, Neg(Log(probs[tokens[posID+1]])))
	}
	return Mul(V(1/float64(n)), loss), n
}

type StepResult struct {
	Step     int // 1-based
	NumSteps int
	Loss     float64
	LR       float64
	SeqLen   int
	Doc      string
}

type Report struct {
	Steps     int
	FinalLoss float64
	// FirstMean and LastMean average the first and last LossWindow losses.
	FirstMean float64
	LastMean  float64
	Losses    []float64
}

// Trainer walks the documents cyclically, one document per step.
type Trainer struct {
	model  *Model
	adam   *Adam
	cfg    AdamConfig
	docs   []string
	step   int
	losses []float64
}

// NewTrainer expects docs already shuffled and fully covered by the
// model's vocabulary.
func NewTrainer(m *Model, docs []string, cfg AdamConfig) (*Trainer, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		model: m,
		adam:  NewAdam(m.Params.Len(), cfg),
		cfg:   cfg,
		docs:  docs,
	}, nil
}

// Step runs forward, backward and one Adam update on the next document.
func (t *Trainer) Step() (StepResult, error) {
	if t.step >= t.cfg.NumSteps {
		return StepResult{}, ErrTrainingDone
	}
	doc := t.docs[t.step%len(t.docs)]
	tokens, err := t.model.Vocab.EncodeDoc(doc)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: %w", t.step+1, err)
	}

	params := t.model.Params
	params.ZeroGrad()
	loss, n := t.model.Loss(tokens)
	Backward(loss)
	lr := t.adam.LearningRate(t.step)
	t.adam.Step(params.All(), t.step)

	t.step++
	t.losses = append(t.losses, loss.Data)
	return StepResult{
		Step:     t.step,
		NumSteps: t.cfg.NumSteps,
		Loss:     loss.Data,
		LR:       lr,
		SeqLen:   n,
		Doc:      doc,
	}, nil
}

// Run trains until NumSteps, ctx is done, or fn fails. fn may be nil.
func (t *Trainer) Run(ctx context.Context, fn func(StepResult) error) (Report, error) {
	for t.step < t.cfg.NumSteps {
		if err := ctx.Err(); err != nil {
			return t.Report(), err
		}
		res, err := t.Step()
		if err != nil {
			return t.Report(), err
		}
		if fn != nil {
			if err := fn(res); err != nil {
				return t.Report(), err
			}
		}
	}
	return t.Report(), nil
}

func (t *Trainer) Report() Report {
	r := Report{Steps: len(t.losses), Losses: append([]float64(nil), t.losses...)}
	if len(t.losses) == 0 {
		return r
	}
	w := LossWindow
	if w > len(t.losses) {
		w = len(t.losses)
	}
	r.FinalLoss = t.losses[len(t.losses)-1]
	r.FirstMean = stat.Mean(t.losses[:w], nil)
	r.LastMean = stat.Mean(t.losses[len(t.losses)-w:], nil)
	return r
}

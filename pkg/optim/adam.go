// Package optim updates model parameters from accumulated gradients.
package optim

import (
	"fmt"
	"math"

	"github.com/joelsearcy/charrnn-go/pkg/autograd"
	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// Config holds the Adam hyperparameters.
type Config struct {
	LR       float64 `yaml:"learning_rate"`
	Beta1    float64 `yaml:"beta1"`
	Beta2    float64 `yaml:"beta2"`
	Epsilon  float64 `yaml:"epsilon"`
	ClipNorm float64 `yaml:"clip_norm"` // global gradient norm cap; 0 disables
}

// DefaultConfig matches the usual Adam defaults with a small LR.
func DefaultConfig() Config {
	return Config{LR: 0.002, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8, ClipNorm: 5}
}

// Validate rejects values that make the update undefined.
func (c Config) Validate() error {
	switch {
	case c.LR <= 0:
		return fmt.Errorf("optim: learning rate %g: %w", c.LR, contract.ErrInvalidConfiguration)
	case c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1:
		return fmt.Errorf("optim: betas %g, %g: %w", c.Beta1, c.Beta2, contract.ErrInvalidConfiguration)
	case c.Epsilon <= 0:
		return fmt.Errorf("optim: epsilon %g: %w", c.Epsilon, contract.ErrInvalidConfiguration)
	case c.ClipNorm < 0:
		return fmt.Errorf("optim: clip norm %g: %w", c.ClipNorm, contract.ErrInvalidConfiguration)
	}
	return nil
}

// AdamOptimizer implements the Adam optimization algorithm
type AdamOptimizer struct {
	Config

	m []float64 // first moment estimates
	v []float64 // second moment estimates
	t int       // timestep counter
}

// NewAdam creates a new Adam optimizer for numParams parameters.
func NewAdam(numParams int, cfg Config) (*AdamOptimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AdamOptimizer{
		Config: cfg,
		m:      make([]float64, numParams),
		v:      make([]float64, numParams),
	}, nil
}

// Steps returns how many updates have been applied.
func (opt *AdamOptimizer) Steps() int { return opt.t }

// Step applies one update and zeroes the gradients. lrScale multiplies the
// base learning rate (for scheduling). It returns the gradient norm measured
// before clipping.
func (opt *AdamOptimizer) Step(params []*autograd.Value, lrScale float64) float64 {
	if len(params) != len(opt.m) {
		panic(fmt.Sprintf("optim: %d params, optimizer sized for %d", len(params), len(opt.m)))
	}

	var sq float64
	for _, p := range params {
		sq += p.Grad * p.Grad
	}
	norm := math.Sqrt(sq)
	scale := 1.0
	if opt.ClipNorm > 0 && norm > opt.ClipNorm {
		scale = opt.ClipNorm / norm
	}

	opt.t++
	bc1 := 1 - math.Pow(opt.Beta1, float64(opt.t))
	bc2 := 1 - math.Pow(opt.Beta2, float64(opt.t))
	lr := opt.LR * lrScale

	for i, p := range params {
		g := p.Grad * scale
		opt.m[i] = opt.Beta1*opt.m[i] + (1-opt.Beta1)*g
		opt.v[i] = opt.Beta2*opt.v[i] + (1-opt.Beta2)*g*g

		mHat := opt.m[i] / bc1
		vHat := opt.v[i] / bc2
		p.Data -= lr * mHat / (math.Sqrt(vHat) + opt.Epsilon)
		p.Grad = 0
	}
	return norm
}

// Reset resets the optimizer state for a new training run
func (opt *AdamOptimizer) Reset() {
	clear(opt.m)
	clear(opt.v)
	opt.t = 0
}

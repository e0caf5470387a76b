package optim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelsearcy/charrnn-go/pkg/autograd"
	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

func TestAdamMinimizesQuadratic(t *testing.T) {
	// f(x, y) = (x-3)^2 + (y+1)^2
	x, y := autograd.NewValue(0), autograd.NewValue(0)
	params := []*autograd.Value{x, y}

	cfg := DefaultConfig()
	cfg.LR = 0.1
	opt, err := NewAdam(len(params), cfg)
	require.NoError(t, err)

	for range 1000 {
		f := x.Sub(autograd.Scalar(3)).Pow(2).Add(y.Add(autograd.Scalar(1)).Pow(2))
		f.Backward()
		opt.Step(params, 1)
	}
	assert.InDelta(t, 3.0, x.Data, 5e-2)
	assert.InDelta(t, -1.0, y.Data, 5e-2)
	assert.Equal(t, 1000, opt.Steps())
}

func TestAdamFirstStepSize(t *testing.T) {
	// After bias correction the first update is lr * sign(g).
	p := autograd.NewValue(1)
	p.Grad = 0.3
	opt, err := NewAdam(1, Config{LR: 0.01, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-12})
	require.NoError(t, err)

	opt.Step([]*autograd.Value{p}, 1)
	assert.InDelta(t, 0.99, p.Data, 1e-9)
	assert.Equal(t, 0.0, p.Grad, "Step zeroes gradients")
}

func TestAdamClipping(t *testing.T) {
	p := []*autograd.Value{autograd.NewValue(0), autograd.NewValue(0)}
	p[0].Grad, p[1].Grad = 30, 40

	opt, err := NewAdam(2, Config{LR: 0.1, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8, ClipNorm: 1})
	require.NoError(t, err)
	norm := opt.Step(p, 1)
	assert.InDelta(t, 50.0, norm, 1e-9)
	// Clipping preserves direction; the first Adam step is still ±lr.
	assert.InDelta(t, -0.1, p[0].Data, 1e-6)
	assert.InDelta(t, -0.1, p[1].Data, 1e-6)
	assert.InDelta(t, 0.1*0.6, opt.m[0], 1e-9)
}

func TestAdamLRScaleAndReset(t *testing.T) {
	p := autograd.NewValue(0)
	p.Grad = 1
	opt, err := NewAdam(1, DefaultConfig())
	require.NoError(t, err)

	opt.Step([]*autograd.Value{p}, 0)
	assert.Equal(t, 0.0, p.Data)

	opt.Reset()
	assert.Equal(t, 0, opt.Steps())
	assert.Equal(t, []float64{0}, opt.m)
}

func TestAdamPanicsOnSizeMismatch(t *testing.T) {
	opt, err := NewAdam(2, DefaultConfig())
	require.NoError(t, err)
	assert.Panics(t, func() { opt.Step([]*autograd.Value{autograd.NewValue(1)}, 1) })
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := []Config{
		{LR: 0, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8},
		{LR: 0.1, Beta1: 1, Beta2: 0.999, Epsilon: 1e-8},
		{LR: 0.1, Beta1: 0.9, Beta2: -0.1, Epsilon: 1e-8},
		{LR: 0.1, Beta1: 0.9, Beta2: 0.999, Epsilon: 0},
		{LR: 0.1, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8, ClipNorm: -1},
		{LR: math.Inf(-1), Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8},
	}
	for i, cfg := range bad {
		require.ErrorIs(t, cfg.Validate(), contract.ErrInvalidConfiguration, "case %d", i)
		_, err := NewAdam(1, cfg)
		require.Error(t, err)
	}
}

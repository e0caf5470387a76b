package generate

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// Categorical draws one index from softmax(logits / temperature).
//
// Low temperatures sharpen the distribution toward the arg-max, high ones
// flatten it toward uniform. The draw is always random, never an arg-max.
func Categorical(logits []float64, temperature float64, rng *rand.Rand) (int, error) {
	if err := checkTemperature(temperature); err != nil {
		return 0, err
	}
	if len(logits) == 0 {
		return 0, fmt.Errorf("generate: empty logits: %w", contract.ErrModelInvocation)
	}

	maxVal := math.Inf(-1)
	for i, l := range logits {
		if math.IsNaN(l) || math.IsInf(l, 1) {
			return 0, fmt.Errorf("generate: logit %d is %v: %w", i, l, contract.ErrModelInvocation)
		}
		maxVal = max(maxVal, l)
	}
	if math.IsInf(maxVal, -1) {
		return 0, fmt.Errorf("generate: all logits are -Inf: %w", contract.ErrModelInvocation)
	}

	// Subtracting the maximum before scaling keeps tiny temperatures finite.
	weights := make([]float64, len(logits))
	var total float64
	for i, l := range logits {
		weights[i] = math.Exp((l - maxVal) / temperature)
		total += weights[i]
	}

	u := rng.Float64() * total
	last := 0
	for i, w := range weights {
		if w == 0 {
			continue
		}
		if u < w {
			return i, nil
		}
		u -= w
		last = i
	}
	// Rounding left u just past the final bucket.
	return last, nil
}

func checkTemperature(t float64) error {
	if !(t > 0) || math.IsInf(t, 1) {
		return fmt.Errorf("generate: temperature %v must be finite and > 0: %w", t, contract.ErrInvalidConfiguration)
	}
	return nil
}

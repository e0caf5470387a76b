// Package generate samples text from a stateful character model.
//
// Generation encodes a start string, resets the model state once, and then
// repeatedly draws the next character from the model's temperature-scaled
// distribution, feeding each drawn character back as the only input of the
// next step. Context between steps lives entirely in the model's recurrent
// state.
package generate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
	"github.com/joelsearcy/charrnn-go/pkg/vocab"
)

// Error reports a generation that stopped after it had started. Partial is
// the start string plus every character appended before the failure; it is
// only available to callers that ask for it with errors.As.
type Error struct {
	Step    int // 1-based step that failed
	Partial string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generate: step %d: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Generator serializes generations against one stateful model.
type Generator struct {
	mu     sync.Mutex
	model  contract.StatefulModel
	vocab  *vocab.Vocabulary
	rng    *rand.Rand
	logger *slog.Logger
	stream func(rune)
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand fixes the random source. The default is seeded from the runtime.
func WithRand(rng *rand.Rand) Option { return func(g *Generator) { g.rng = rng } }

// WithLogger sets the logger; the default discards.
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

// WithStream calls fn with every generated character as it is appended.
func WithStream(fn func(rune)) Option { return func(g *Generator) { g.stream = fn } }

// New returns a Generator for model over v. The model's output dimension must
// equal v.Size().
func New(model contract.StatefulModel, v *vocab.Vocabulary, opts ...Option) *Generator {
	g := &Generator{
		model:  model,
		vocab:  v,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// Generate returns start followed by length sampled characters.
//
// Configuration and seed errors are reported before the model is touched.
// Once generation has begun, failures, including cancellation of ctx checked
// before every step, are returned as *Error and the returned string is empty.
func (g *Generator) Generate(ctx context.Context, start string, length int, temperature float64) (string, error) {
	if err := checkTemperature(temperature); err != nil {
		return "", err
	}
	if length < 0 {
		return "", fmt.Errorf("generate: length %d: %w", length, contract.ErrInvalidConfiguration)
	}
	if start == "" {
		return "", fmt.Errorf("generate: empty start string: %w", contract.ErrInvalidConfiguration)
	}
	input, err := g.vocab.EncodeString(start)
	if err != nil {
		return "", fmt.Errorf("generate: start string: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Debug("generate", "start_len", len(input), "length", length, "temperature", temperature)

	var out strings.Builder
	out.Grow(len(start) + length)
	out.WriteString(start)

	g.model.ResetState()
	for step := 1; step <= length; step++ {
		if err := ctx.Err(); err != nil {
			return "", &Error{Step: step, Partial: out.String(), Err: err}
		}

		logits, err := g.model.Step(ctx, input)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			} else {
				err = fmt.Errorf("%w: %w", contract.ErrModelInvocation, err)
			}
			return "", &Error{Step: step, Partial: out.String(), Err: err}
		}

		id, err := Categorical(logits, temperature, g.rng)
		if err != nil {
			return "", &Error{Step: step, Partial: out.String(), Err: err}
		}
		r, err := g.vocab.Decode(id)
		if err != nil {
			return "", &Error{Step: step, Partial: out.String(), Err: err}
		}

		out.WriteRune(r)
		if g.stream != nil {
			g.stream(r)
		}
		input = []int{id}
	}

	g.logger.Debug("generated", "length", length)
	return out.String(), nil
}

// Generate is a one-shot helper around a Generator.
func Generate(ctx context.Context, model contract.StatefulModel, v *vocab.Vocabulary,
	start string, length int, temperature float64, rng *rand.Rand) (string, error) {
	return New(model, v, WithRand(rng)).Generate(ctx, start, length, temperature)
}

// Package train fits a model to a dataset with Adam and checkpoints it.
package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/joelsearcy/charrnn-go/pkg/checkpoint"
	"github.com/joelsearcy/charrnn-go/pkg/contract"
	"github.com/joelsearcy/charrnn-go/pkg/data"
	"github.com/joelsearcy/charrnn-go/pkg/model"
	"github.com/joelsearcy/charrnn-go/pkg/optim"
	"github.com/joelsearcy/charrnn-go/pkg/vocab"
)

// Config controls the training loop.
type Config struct {
	Epochs          int          `yaml:"epochs"`
	CheckpointEvery int          `yaml:"checkpoint_every"` // steps; 0 saves at the end of each epoch
	LogEvery        int          `yaml:"log_every"`
	Optim           optim.Config `yaml:"optim"`
}

// StepReport describes one completed optimization step.
type StepReport struct {
	Step     int // 1-based global step
	Epoch    int // 0-based
	Loss     float64
	GradNorm float64
	LR       float64
}

// Result summarizes a Run. EvalLoss is the loss of the last batch through
// Forward after the final step.
type Result struct {
	Steps     int
	LastLoss  float64
	EvalLoss  float64
	Duration  time.Duration
	Restarted bool
}

// Trainer owns the optimization state for one model.
type Trainer struct {
	model  *model.GRU
	vocab  *vocab.Vocabulary
	opt    *optim.AdamOptimizer
	cfg    Config
	store  checkpoint.Store
	logger *slog.Logger
	onStep func(StepReport)
	runID  string

	step     int
	restored bool
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithStore enables checkpointing.
func WithStore(s checkpoint.Store) Option { return func(t *Trainer) { t.store = s } }

// WithLogger sets the logger; the default discards.
func WithLogger(l *slog.Logger) Option { return func(t *Trainer) { t.logger = l } }

// WithStepHook is called after every step.
func WithStepHook(fn func(StepReport)) Option { return func(t *Trainer) { t.onStep = fn } }

// WithRunID is recorded in every checkpoint.
func WithRunID(id string) Option { return func(t *Trainer) { t.runID = id } }

// New validates cfg and prepares an optimizer for m.
func New(m *model.GRU, v *vocab.Vocabulary, cfg Config, opts ...Option) (*Trainer, error) {
	if cfg.Epochs < 1 {
		return nil, fmt.Errorf("train: epochs %d: %w", cfg.Epochs, contract.ErrInvalidConfiguration)
	}
	if cfg.CheckpointEvery < 0 || cfg.LogEvery < 0 {
		return nil, fmt.Errorf("train: negative interval: %w", contract.ErrInvalidConfiguration)
	}
	if v.Size() != m.Config().VocabSize {
		return nil, fmt.Errorf("train: vocabulary has %d symbols, model %d: %w",
			v.Size(), m.Config().VocabSize, contract.ErrInvalidConfiguration)
	}
	opt, err := optim.NewAdam(len(m.Parameters()), cfg.Optim)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	t := &Trainer{
		model:  m,
		vocab:  v,
		opt:    opt,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Step returns the number of completed steps.
func (t *Trainer) Step() int { return t.step }

// Snapshot captures the current weights.
func (t *Trainer) Snapshot() *checkpoint.Snapshot {
	return &checkpoint.Snapshot{
		Step:    t.step,
		RunID:   t.runID,
		Vocab:   t.vocab.Runes(),
		Model:   t.model.Config(),
		Tensors: t.model.Params.StateDict(),
	}
}

// Restore loads the latest checkpoint, if any, into the model. It reports
// whether one was found. A checkpoint for a different vocabulary or model
// shape is an error.
func (t *Trainer) Restore() (bool, error) {
	if t.store == nil {
		return false, nil
	}
	snap, err := t.store.Latest()
	if errors.Is(err, checkpoint.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("train: restore: %w", err)
	}

	if !slices.Equal(snap.Vocab, t.vocab.Runes()) {
		return false, fmt.Errorf("train: restore step %d: vocabulary differs: %w", snap.Step, contract.ErrInvalidConfiguration)
	}
	cur := t.model.Config()
	if snap.Model.EmbedDim != cur.EmbedDim || snap.Model.HiddenSize != cur.HiddenSize || snap.Model.VocabSize != cur.VocabSize {
		return false, fmt.Errorf("train: restore step %d: model shape differs: %w", snap.Step, contract.ErrInvalidConfiguration)
	}
	if err := t.model.Params.LoadStateDict(snap.Tensors); err != nil {
		return false, fmt.Errorf("train: restore step %d: %w", snap.Step, err)
	}

	t.step = snap.Step
	t.restored = true
	t.logger.Info("restored checkpoint", "step", snap.Step, "from_run", snap.RunID)
	return true, nil
}

func (t *Trainer) save() error {
	if t.store == nil {
		return nil
	}
	if err := t.store.Save(t.Snapshot()); err != nil {
		return fmt.Errorf("train: step %d: %w", t.step, err)
	}
	t.logger.Info("saved checkpoint", "step", t.step)
	return nil
}

// Run trains for cfg.Epochs epochs of ds, resuming from t.Step(). rng drives
// the per-epoch shuffle. On cancellation the current weights are saved before
// the context error is returned.
func (t *Trainer) Run(ctx context.Context, ds *data.Dataset, rng *rand.Rand) (Result, error) {
	start := time.Now()
	perEpoch := ds.StepsPerEpoch()
	total := t.cfg.Epochs * perEpoch
	params := t.model.Parameters()

	res := Result{Restarted: t.restored}
	t.logger.Info("training",
		"pairs", ds.Len(), "steps_per_epoch", perEpoch, "total_steps", total,
		"params", len(params), "resume_step", t.step)

	var last data.Batch
	for epoch := t.step / perEpoch; epoch < t.cfg.Epochs; epoch++ {
		skip := t.step - epoch*perEpoch
		for batch := range ds.Epoch(rng) {
			if skip > 0 {
				skip--
				continue
			}
			if err := ctx.Err(); err != nil {
				if serr := t.save(); serr != nil {
					return res, errors.Join(err, serr)
				}
				return res, fmt.Errorf("train: interrupted at step %d: %w", t.step, err)
			}

			loss, err := t.model.Loss(batch.Inputs(), batch.Targets())
			if err != nil {
				return res, fmt.Errorf("train: step %d: %w", t.step+1, err)
			}
			loss.Backward()

			lrScale := 1 - float64(t.step)/float64(total)
			norm := t.opt.Step(params, lrScale)
			t.step++
			last = batch

			report := StepReport{Step: t.step, Epoch: epoch, Loss: loss.Data, GradNorm: norm, LR: t.cfg.Optim.LR * lrScale}
			res.LastLoss = loss.Data
			if t.onStep != nil {
				t.onStep(report)
			}
			if t.cfg.LogEvery > 0 && (t.step%t.cfg.LogEvery == 0 || t.step == total) {
				t.logger.Info("step", "step", t.step, "epoch", epoch, "loss", loss.Data, "grad_norm", norm, "lr", report.LR)
			}
			if t.cfg.CheckpointEvery > 0 && t.step%t.cfg.CheckpointEvery == 0 {
				if err := t.save(); err != nil {
					return res, err
				}
			}
		}

		if t.cfg.CheckpointEvery == 0 {
			if err := t.save(); err != nil {
				return res, err
			}
		}
		if last != nil {
			eval, err := t.Evaluate(last)
			if err != nil {
				return res, err
			}
			res.EvalLoss = eval
			t.logger.Info("epoch done", "epoch", epoch, "step", t.step, "eval_loss", eval)
		}
	}

	if t.cfg.CheckpointEvery > 0 && t.step%t.cfg.CheckpointEvery != 0 {
		if err := t.save(); err != nil {
			return res, err
		}
	}

	res.Steps = t.step
	res.Duration = time.Since(start)
	return res, nil
}

// Evaluate returns the mean cross-entropy of batch under the current weights,
// computed through the inference path without building a gradient graph.
func (t *Trainer) Evaluate(batch data.Batch) (float64, error) {
	return Evaluate(t.model, batch)
}

// Evaluate scores batch with any sequence model.
func Evaluate(m contract.SequenceModel, batch data.Batch) (float64, error) {
	logits, err := m.Forward(batch.Inputs())
	if err != nil {
		return 0, fmt.Errorf("train: evaluate: %w: %w", contract.ErrModelInvocation, err)
	}

	var sum float64
	var n int
	for ex, pair := range batch {
		for pos, tgt := range pair.Target {
			sum += crossEntropy(logits[ex][pos], tgt)
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("train: evaluate empty batch: %w", contract.ErrInvalidConfiguration)
	}
	return sum / float64(n), nil
}

func crossEntropy(logits []float64, target int) float64 {
	maxVal := slices.Max(logits)
	var sum float64
	for _, l := range logits {
		sum += math.Exp(l - maxVal)
	}
	return maxVal + math.Log(sum) - logits[target]
}

package data

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// Config controls how a Dataset windows and batches the corpus.
type Config struct {
	WindowLength  int `yaml:"window_length"`
	BatchSize     int `yaml:"batch_size"`
	ShuffleBuffer int `yaml:"shuffle_buffer"`
}

// Dataset is a re-iterable source of batches: every call to Epoch reshuffles
// the same pairs.
type Dataset struct {
	pairs []Pair
	cfg   Config
}

// NewDataset windows encoded and validates the batching parameters.
func NewDataset(encoded []int, cfg Config) (*Dataset, error) {
	if err := checkBatching(cfg.BatchSize, cfg.ShuffleBuffer); err != nil {
		return nil, err
	}
	pairs, err := MakePairs(encoded, cfg.WindowLength)
	if err != nil {
		return nil, err
	}
	if len(pairs) < cfg.BatchSize {
		return nil, fmt.Errorf("data: %d pair(s) cannot fill one batch of %d: %w",
			len(pairs), cfg.BatchSize, contract.ErrInvalidConfiguration)
	}
	return &Dataset{pairs: pairs, cfg: cfg}, nil
}

// Len returns the number of training pairs.
func (d *Dataset) Len() int { return len(d.pairs) }

// StepsPerEpoch returns the number of full batches per epoch.
func (d *Dataset) StepsPerEpoch() int { return len(d.pairs) / d.cfg.BatchSize }

// Config returns the parameters the dataset was built with.
func (d *Dataset) Config() Config { return d.cfg }

// Epoch yields one pass of shuffled batches. A nil rng uses an unseeded source.
func (d *Dataset) Epoch(rng *rand.Rand) iter.Seq[Batch] {
	if rng == nil {
		rng = newUnseeded()
	}
	return Batches(Shuffle(slices.Values(d.pairs), d.cfg.ShuffleBuffer, rng), d.cfg.BatchSize)
}

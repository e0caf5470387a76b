// Package config loads the YAML configuration shared by the commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
	"github.com/joelsearcy/charrnn-go/pkg/corpus"
	"github.com/joelsearcy/charrnn-go/pkg/data"
	"github.com/joelsearcy/charrnn-go/pkg/model"
	"github.com/joelsearcy/charrnn-go/pkg/optim"
	"github.com/joelsearcy/charrnn-go/pkg/train"
)

// Corpus locates the training text.
type Corpus struct {
	Dir       string `yaml:"dir"`
	Pattern   string `yaml:"pattern"`
	URL       string `yaml:"url"` // downloaded into Dir when set
	Normalize string `yaml:"normalize"`
}

// Train holds the training loop settings and where checkpoints go.
type Train struct {
	train.Config    `yaml:",inline"`
	CheckpointDir   string `yaml:"checkpoint_dir"`
	KeepCheckpoints int    `yaml:"keep_checkpoints"`
	Seed            uint64 `yaml:"seed"` // 0 draws a random seed
}

// Generate holds the sampling settings of the generate command.
type Generate struct {
	Start       string  `yaml:"start"`
	Length      int     `yaml:"length"`
	Temperature float64 `yaml:"temperature"`
	Seed        uint64  `yaml:"seed"`
}

// Log selects the logger level and format.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root of the YAML document.
type Config struct {
	Corpus   Corpus       `yaml:"corpus"`
	Data     data.Config  `yaml:"data"`
	Model    model.Config `yaml:"model"`
	Train    Train        `yaml:"train"`
	Generate Generate     `yaml:"generate"`
	Log      Log          `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Corpus: Corpus{Dir: "txt-training", Pattern: "*.txt"},
		Data:   data.Config{WindowLength: 100, BatchSize: 16, ShuffleBuffer: 10000},
		Model:  model.Config{EmbedDim: 16, HiddenSize: 32, Cell: model.CellAccelerated},
		Train: Train{
			Config:        train.Config{Epochs: 15, LogEvery: 10, Optim: optim.DefaultConfig()},
			CheckpointDir: "training_checkpoints",
		},
		Generate: Generate{Start: "'", Length: 50000, Temperature: 1.0},
		Log:      Log{Level: "info", Format: "json"},
	}
}

// Load reads path over Default and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := decode(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	if kind, err := model.ParseCellKind(string(cfg.Model.Cell)); err == nil {
		cfg.Model.Cell = kind
	}
	return cfg, cfg.Validate()
}

func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("config: "+format+": %w", append(args, contract.ErrInvalidConfiguration)...)
	}

	if _, err := corpus.ParseForm(c.Corpus.Normalize); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch {
	case c.Data.WindowLength < 1:
		return invalid("data.window_length %d", c.Data.WindowLength)
	case c.Data.BatchSize < 1:
		return invalid("data.batch_size %d", c.Data.BatchSize)
	case c.Data.ShuffleBuffer < 1:
		return invalid("data.shuffle_buffer %d", c.Data.ShuffleBuffer)
	case c.Model.EmbedDim < 1:
		return invalid("model.embed_dim %d", c.Model.EmbedDim)
	case c.Model.HiddenSize < 1:
		return invalid("model.hidden_size %d", c.Model.HiddenSize)
	case c.Train.Epochs < 1:
		return invalid("train.epochs %d", c.Train.Epochs)
	case c.Train.CheckpointEvery < 0 || c.Train.LogEvery < 0 || c.Train.KeepCheckpoints < 0:
		return invalid("train intervals must not be negative")
	case !(c.Generate.Temperature > 0) || math.IsInf(c.Generate.Temperature, 1):
		return invalid("generate.temperature %v", c.Generate.Temperature)
	case c.Generate.Length < 0:
		return invalid("generate.length %d", c.Generate.Length)
	case c.Generate.Start == "":
		return invalid("generate.start is empty")
	}
	if _, err := model.ParseCellKind(string(c.Model.Cell)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Train.Optim.Validate(); err != nil {
		return fmt.Errorf("config: train.optim: %w", err)
	}
	return nil
}

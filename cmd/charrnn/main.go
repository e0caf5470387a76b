// Command charrnn trains a character-level recurrent model on a directory of
// text files and generates new text from its checkpoints.
//
//	charrnn train    [-config file] [-corpus dir] [-epochs n] [-checkpoint-dir dir] [-seed n]
//	charrnn generate [-config file] [-checkpoint-dir dir] [-step n] [-start s] [-length n] [-temperature t] [-seed n]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"

	"github.com/joelsearcy/charrnn-go/internal/config"
	"github.com/joelsearcy/charrnn-go/internal/logging"
	"github.com/joelsearcy/charrnn-go/pkg/checkpoint"
	"github.com/joelsearcy/charrnn-go/pkg/corpus"
	"github.com/joelsearcy/charrnn-go/pkg/data"
	"github.com/joelsearcy/charrnn-go/pkg/generate"
	"github.com/joelsearcy/charrnn-go/pkg/model"
	"github.com/joelsearcy/charrnn-go/pkg/train"
	"github.com/joelsearcy/charrnn-go/pkg/vocab"
)

var errUsage = errors.New("usage: charrnn <train|generate> [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "train":
		return runTrain(ctx, args[1:], stderr)
	case "generate":
		return runGenerate(ctx, args[1:], stdout, stderr)
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

// env is the state every subcommand starts from.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	runID  string
}

// setup parses fs, loads the config file it names and lets explicitly set
// flags override it through apply.
func setup(fs *flag.FlagSet, args []string, stderr io.Writer, apply func(*config.Config, *flag.Flag)) (*env, error) {
	cfgPath := fs.String("config", "", "YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name != "config" {
			apply(&cfg, f)
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := logging.NewRunID()
	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format, runID)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, runID: runID}, nil
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed))
}

func runTrain(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	corpusDir := fs.String("corpus", "", "directory of training text")
	epochs := fs.Int("epochs", 0, "number of epochs")
	ckptDir := fs.String("checkpoint-dir", "", "checkpoint directory")
	seed := fs.Uint64("seed", 0, "random seed; 0 picks one")

	e, err := setup(fs, args, stderr, func(c *config.Config, f *flag.Flag) {
		switch f.Name {
		case "corpus":
			c.Corpus.Dir = *corpusDir
		case "epochs":
			c.Train.Epochs = *epochs
		case "checkpoint-dir":
			c.Train.CheckpointDir = *ckptDir
		case "seed":
			c.Train.Seed = *seed
		}
	})
	if err != nil {
		return err
	}
	cfg, logger := e.cfg, e.logger

	if cfg.Corpus.URL != "" {
		dest := filepath.Join(cfg.Corpus.Dir, path.Base(cfg.Corpus.URL))
		if err := corpus.DownloadIfNotExists(cfg.Corpus.URL, dest); err != nil {
			return err
		}
	}

	src, err := corpus.ReadDir(cfg.Corpus.Dir, cfg.Corpus.Pattern)
	if err != nil {
		return err
	}
	form, err := corpus.ParseForm(cfg.Corpus.Normalize)
	if err != nil {
		return err
	}
	text, err := src.Assemble(form)
	if err != nil {
		return err
	}

	v, err := vocab.Build(text)
	if err != nil {
		return err
	}
	encoded, err := v.EncodeString(text)
	if err != nil {
		return err
	}
	logger.Info("corpus loaded", "files", len(src), "runes", len(encoded), "vocab", v.Size())

	ds, err := data.NewDataset(encoded, cfg.Data)
	if err != nil {
		return err
	}

	rng := newRand(cfg.Train.Seed)
	mcfg := cfg.Model
	mcfg.VocabSize = v.Size()
	m, err := model.NewGRU(mcfg, rng)
	if err != nil {
		return err
	}

	store, err := checkpoint.NewFileStore(cfg.Train.CheckpointDir, cfg.Train.KeepCheckpoints)
	if err != nil {
		return err
	}
	trainer, err := train.New(m, v, cfg.Train.Config,
		train.WithStore(store),
		train.WithLogger(logger),
		train.WithRunID(e.runID),
	)
	if err != nil {
		return err
	}
	if _, err := trainer.Restore(); err != nil {
		return err
	}

	res, err := trainer.Run(ctx, ds, rng)
	if err != nil {
		return err
	}
	logger.Info("training complete",
		"steps", res.Steps, "loss", res.LastLoss, "eval_loss", res.EvalLoss,
		"duration", res.Duration.String(), "resumed", res.Restarted)
	return nil
}

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	ckptDir := fs.String("checkpoint-dir", "", "checkpoint directory")
	step := fs.Int("step", 0, "checkpoint step; 0 uses the latest")
	start := fs.String("start", "", "start string")
	length := fs.Int("length", 0, "number of characters to generate")
	temperature := fs.Float64("temperature", 0, "sampling temperature")
	seed := fs.Uint64("seed", 0, "random seed; 0 picks one")

	e, err := setup(fs, args, stderr, func(c *config.Config, f *flag.Flag) {
		switch f.Name {
		case "checkpoint-dir":
			c.Train.CheckpointDir = *ckptDir
		case "start":
			c.Generate.Start = *start
		case "length":
			c.Generate.Length = *length
		case "temperature":
			c.Generate.Temperature = *temperature
		case "seed":
			c.Generate.Seed = *seed
		}
	})
	if err != nil {
		return err
	}
	cfg, logger := e.cfg, e.logger

	store, err := checkpoint.NewFileStore(cfg.Train.CheckpointDir, 0)
	if err != nil {
		return err
	}
	var snap *checkpoint.Snapshot
	if *step > 0 {
		snap, err = store.Load(*step)
	} else {
		snap, err = store.Latest()
	}
	if err != nil {
		return err
	}

	v, err := vocab.FromRunes(snap.Vocab)
	if err != nil {
		return err
	}
	rng := newRand(cfg.Generate.Seed)
	mcfg := snap.Model
	mcfg.Cell = cfg.Model.Cell
	m, err := model.NewGRU(mcfg, rng)
	if err != nil {
		return err
	}
	if err := m.Params.LoadStateDict(snap.Tensors); err != nil {
		return err
	}
	sess, err := m.NewSession()
	if err != nil {
		return err
	}
	logger.Info("checkpoint loaded", "step", snap.Step, "trained_by", snap.RunID, "vocab", v.Size())

	if _, err := v.EncodeString(cfg.Generate.Start); err != nil {
		return fmt.Errorf("generate: start string: %w", err)
	}

	w := bufio.NewWriter(stdout)
	defer w.Flush()
	gen := generate.New(sess, v,
		generate.WithRand(rng),
		generate.WithLogger(logger),
		generate.WithStream(func(r rune) { w.WriteRune(r) }),
	)

	w.WriteString(cfg.Generate.Start)
	if _, err := gen.Generate(ctx, cfg.Generate.Start, cfg.Generate.Length, cfg.Generate.Temperature); err != nil {
		return err
	}
	w.WriteString("\n")
	return nil
}

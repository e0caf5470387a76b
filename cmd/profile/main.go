package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime/pprof"

	"github.com/joelsearcy/charrnn-go/pkg/corpus"
	"github.com/joelsearcy/charrnn-go/pkg/data"
	"github.com/joelsearcy/charrnn-go/pkg/model"
	"github.com/joelsearcy/charrnn-go/pkg/optim"
	"github.com/joelsearcy/charrnn-go/pkg/vocab"
)

const (
	// Model hyperparameters
	EmbedDim   = 16
	HiddenSize = 32

	// Data
	WindowLength = 100
	BatchSize    = 16
	Seed         = 42
	DataURL      = "https://raw.githubusercontent.com/karpathy/char-rnn/6f9487a/data/tinyshakespeare/input.txt"
	DataPath     = "input.txt"
)

func main() {
	numSteps := flag.Int("steps", 20, "training steps to profile")
	cell := flag.String("cell", string(model.CellAccelerated), "inference cell backend")
	flag.Parse()

	// 1. Start CPU profiling
	cpuFile, err := os.Create("cpu.prof")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
		os.Exit(1)
	}
	defer cpuFile.Close()

	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
		os.Exit(1)
	}
	defer pprof.StopCPUProfile()

	fmt.Println("CPU profiling enabled - writing to cpu.prof")

	// 2. Load corpus
	if err := corpus.DownloadIfNotExists(DataURL, DataPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error downloading data: %v\n", err)
		os.Exit(1)
	}
	raw, err := os.ReadFile(DataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		os.Exit(1)
	}
	text, err := corpus.Source{DataPath: raw}.Assemble(corpus.FormNone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		os.Exit(1)
	}

	// 3. Build vocabulary and dataset
	v, err := vocab.Build(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building vocabulary: %v\n", err)
		os.Exit(1)
	}
	encoded, err := v.EncodeString(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding corpus: %v\n", err)
		os.Exit(1)
	}
	ds, err := data.NewDataset(encoded, data.Config{WindowLength: WindowLength, BatchSize: BatchSize, ShuffleBuffer: 10000})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("vocab size: %d, pairs: %d\n", v.Size(), ds.Len())

	// 4. Initialize model
	rng := rand.New(rand.NewPCG(Seed, Seed))
	gru, err := model.NewGRU(model.Config{
		VocabSize:  v.Size(),
		EmbedDim:   EmbedDim,
		HiddenSize: HiddenSize,
		Cell:       model.CellKind(*cell),
	}, rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating model: %v\n", err)
		os.Exit(1)
	}

	params := gru.Parameters()
	fmt.Printf("num params: %d\n", len(params))

	// 5. Initialize optimizer
	optimizer, err := optim.NewAdam(len(params), optim.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating optimizer: %v\n", err)
		os.Exit(1)
	}

	// 6. Training loop
	fmt.Printf("Running %d training steps for profiling...\n", *numSteps)
	step := 0
	for batch := range ds.Epoch(rng) {
		if step == *numSteps {
			break
		}
		loss, err := gru.Loss(batch.Inputs(), batch.Targets())
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError at step %d: %v\n", step, err)
			os.Exit(1)
		}
		loss.Backward()

		// Optimizer step with linear LR decay; also zeroes gradients
		optimizer.Step(params, 1.0-float64(step)/float64(*numSteps))

		if _, err := gru.Forward(batch.Inputs()); err != nil {
			fmt.Fprintf(os.Stderr, "\nError at step %d: %v\n", step, err)
			os.Exit(1)
		}

		step++
		fmt.Printf("\rstep %4d / %4d | loss %.4f", step, *numSteps, loss.Data)
	}
	fmt.Println()

	// 7. Write memory profile
	memFile, err := os.Create("mem.prof")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
		os.Exit(1)
	}
	defer memFile.Close()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Memory profiling complete - written to mem.prof")
	fmt.Println("\nTo analyze profiles:")
	fmt.Println("  go tool pprof cpu.prof")
	fmt.Println("  go tool pprof mem.prof")
	fmt.Println("\nOr view in browser:")
	fmt.Println("  go tool pprof -http=:8080 cpu.prof")
}

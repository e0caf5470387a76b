// Package checkpoint persists model parameters keyed by training step.
package checkpoint

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/joelsearcy/charrnn-go/pkg/model"
)

// ErrNotFound is returned when no checkpoint exists for the requested step.
var ErrNotFound = errors.New("checkpoint: not found")

// Snapshot is everything needed to rebuild a model without the corpus.
type Snapshot struct {
	Step    int
	RunID   string
	Vocab   []rune
	Model   model.Config
	Tensors map[string][]float64
}

// Store is a step-keyed snapshot store.
type Store interface {
	Save(s *Snapshot) error
	Load(step int) (*Snapshot, error)
	// Latest returns the snapshot with the highest step.
	Latest() (*Snapshot, error)
	// Steps lists the stored steps in ascending order.
	Steps() ([]int, error)
}

// MemStore keeps snapshots in memory.
type MemStore struct {
	mu    sync.Mutex
	snaps map[int]*Snapshot
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{snaps: make(map[int]*Snapshot)}
}

func (m *MemStore) Save(s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.Step] = clone(s)
	return nil
}

func (m *MemStore) Load(step int) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[step]
	if !ok {
		return nil, fmt.Errorf("checkpoint: step %d: %w", step, ErrNotFound)
	}
	return clone(s), nil
}

func (m *MemStore) Latest() (*Snapshot, error) {
	steps, _ := m.Steps()
	if len(steps) == 0 {
		return nil, ErrNotFound
	}
	return m.Load(steps[len(steps)-1])
}

func (m *MemStore) Steps() ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.snaps)), nil
}

func clone(s *Snapshot) *Snapshot {
	c := *s
	c.Vocab = slices.Clone(s.Vocab)
	c.Tensors = make(map[string][]float64, len(s.Tensors))
	for k, v := range s.Tensors {
		c.Tensors[k] = slices.Clone(v)
	}
	return &c
}

package checkpoint

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	filePrefix = "ckpt_"
	fileSuffix = ".gob"
)

// FileStore writes one gob file per step into a directory. Writes go to a
// temporary file in the same directory and are renamed into place, so a
// crash never leaves a truncated checkpoint under its final name.
type FileStore struct {
	dir  string
	keep int
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed. keep > 0 limits the number of retained
// checkpoints; older ones are removed after each Save.
func NewFileStore(dir string, keep int) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("checkpoint: empty directory: %w", os.ErrInvalid)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	return &FileStore{dir: dir, keep: keep}, nil
}

func (f *FileStore) path(step int) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s%d%s", filePrefix, step, fileSuffix))
}

func (f *FileStore) Save(s *Snapshot) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-"+filePrefix+"*")
	if err != nil {
		return fmt.Errorf("checkpoint: save step %d: %w", s.Step, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	bw := bufio.NewWriter(tmp)
	if err := gob.NewEncoder(bw).Encode(s); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: encode step %d: %w", s.Step, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: save step %d: %w", s.Step, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: save step %d: %w", s.Step, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: save step %d: %w", s.Step, err)
	}
	if err := os.Rename(tmpName, f.path(s.Step)); err != nil {
		return fmt.Errorf("checkpoint: save step %d: %w", s.Step, err)
	}
	return f.prune()
}

func (f *FileStore) prune() error {
	if f.keep <= 0 {
		return nil
	}
	steps, err := f.Steps()
	if err != nil {
		return err
	}
	for len(steps) > f.keep {
		if err := os.Remove(f.path(steps[0])); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checkpoint: prune: %w", err)
		}
		steps = steps[1:]
	}
	return nil
}

func (f *FileStore) Load(step int) (*Snapshot, error) {
	file, err := os.Open(f.path(step))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checkpoint: step %d: %w", step, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load step %d: %w", step, err)
	}
	defer file.Close()

	var s Snapshot
	if err := gob.NewDecoder(bufio.NewReader(file)).Decode(&s); err != nil {
		return nil, fmt.Errorf("checkpoint: decode step %d: %w", step, err)
	}
	if s.Step != step {
		return nil, fmt.Errorf("checkpoint: file for step %d holds step %d", step, s.Step)
	}
	return &s, nil
}

func (f *FileStore) Latest() (*Snapshot, error) {
	steps, err := f.Steps()
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("checkpoint: %s: %w", f.dir, ErrNotFound)
	}
	return f.Load(steps[len(steps)-1])
}

func (f *FileStore) Steps() ([]int, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	var steps []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil || n < 0 {
			continue
		}
		steps = append(steps, n)
	}
	slices.Sort(steps)
	return steps, nil
}

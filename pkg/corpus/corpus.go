// Package corpus reads raw training text and assembles it into one string.
package corpus

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// ErrInvalidUTF8 is returned when a source file is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("corpus: invalid utf-8")

// Source maps file names to their raw content.
type Source map[string][]byte

// ReadDir loads every regular file in dir whose name matches pattern
// (filepath.Match syntax, e.g. "*.txt").
func ReadDir(dir, pattern string) (Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: read dir: %w", err)
	}

	src := make(Source)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ok, err := filepath.Match(pattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("corpus: pattern %q: %w", pattern, err)
		}
		if !ok {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("corpus: read %s: %w", e.Name(), err)
		}
		src[e.Name()] = b
	}
	return src, nil
}

// Names returns the file names in the order Assemble concatenates them.
func (s Source) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Form selects an optional Unicode normalization applied after concatenation.
type Form string

const (
	FormNone Form = ""
	FormNFC  Form = "nfc"
	FormNFD  Form = "nfd"
	FormNFKC Form = "nfkc"
	FormNFKD Form = "nfkd"
)

// ParseForm accepts "", "none" and the four normalization form names.
func ParseForm(s string) (Form, error) {
	switch f := Form(strings.ToLower(strings.TrimSpace(s))); f {
	case FormNone, "none":
		return FormNone, nil
	case FormNFC, FormNFD, FormNFKC, FormNFKD:
		return f, nil
	default:
		return FormNone, fmt.Errorf("corpus: unknown normalization form %q: %w", s, contract.ErrInvalidConfiguration)
	}
}

func (f Form) apply(s string) string {
	switch f {
	case FormNFC:
		return norm.NFC.String(s)
	case FormNFD:
		return norm.NFD.String(s)
	case FormNFKC:
		return norm.NFKC.String(s)
	case FormNFKD:
		return norm.NFKD.String(s)
	default:
		return s
	}
}

// Assemble concatenates all files in name order and applies form.
// An empty result is an error: nothing could be trained on it.
func (s Source) Assemble(form Form) (string, error) {
	var builder strings.Builder
	for _, name := range s.Names() {
		b := s[name]
		if !utf8.Valid(b) {
			return "", fmt.Errorf("corpus: %s: %w", name, ErrInvalidUTF8)
		}
		builder.Write(b)
	}

	text := form.apply(builder.String())
	if text == "" {
		return "", fmt.Errorf("corpus: no text in %d file(s): %w", len(s), contract.ErrInvalidConfiguration)
	}
	return text, nil
}

// DownloadIfNotExists downloads url to path if path doesn't exist.
func DownloadIfNotExists(url, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("corpus: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("corpus: download %s: status %s", url, resp.Status)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("corpus: download: %w", err)
	}

	// Only a complete body is renamed into place.
	tmp, err := os.CreateTemp(dir, ".tmp-download-*")
	if err != nil {
		return fmt.Errorf("corpus: download: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("corpus: download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("corpus: download: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("corpus: download: %w", err)
	}
	return nil
}

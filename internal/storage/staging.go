package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/gridseed/internal/model"
	"github.com/vmihailenco/msgpack/v5"
)

const stagedExt = ".msgpack"

// Staging writes the batches of one run to msgpack files, one file per
// batch. File names are derived from the run key and batch index, so a rerun
// overwrites the files of a previous attempt.
type Staging struct {
	dir    string
	prefix string
	files  []string
}

// NewStaging returns a Staging for runKey inside dir.
func NewStaging(dir, runKey string) *Staging {
	return &Staging{dir: dir, prefix: strings.ReplaceAll(runKey, "/", "-")}
}

// Dump writes one batch and returns the file path.
func (s *Staging) Dump(batch int, records []model.Record) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%d%s", s.prefix, batch, stagedExt))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	w := bufio.NewWriter(f)
	enc := msgpack.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(map[string]any(r)); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to encode staged record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to flush staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	s.files = append(s.files, path)
	return path, nil
}

// Files returns the paths written so far.
func (s *Staging) Files() []string {
	return append([]string(nil), s.files...)
}

// Clean removes every file written by this Staging.
func (s *Staging) Clean() error {
	var errs []error
	for _, f := range s.files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.files = nil
	return errors.Join(errs...)
}

// ReadStaged streams the records of a staged file to fn.
func ReadStaged(path string, fn func(model.Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %w", err)
	}
	defer f.Close()

	dec := msgpack.NewDecoder(bufio.NewReader(f))
	dec.UseLooseInterfaceDecoding(true)
	for {
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		if err := fn(model.Record(m)); err != nil {
			return err
		}
	}
}

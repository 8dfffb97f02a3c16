// Package tabular writes pages of records to common tabular file formats.
//
// A Writer receives the column order once, then any number of pages, then
// Close. Values are written as produced by the storage layer: nil, bool,
// int64, float64, string, []byte, time.Time or nested maps and slices, which
// are JSON encoded where the format has no native representation.
package tabular

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/gridseed/internal/model"
)

// Supported formats.
const (
	CSV     = "csv"
	JSON    = "json"
	Parquet = "parquet"
	// None disables table export.
	None = "none"
)

// Formats lists the formats a Writer can be created for.
var Formats = []string{CSV, JSON, Parquet}

// WriterError wraps a format-specific write error with context.
type WriterError struct {
	Format string
	Op     string
	Err    error
}

func (e *WriterError) Error() string {
	return fmt.Sprintf("%s writer %s: %v", e.Format, e.Op, e.Err)
}

func (e *WriterError) Unwrap() error {
	return e.Err
}

// Writer streams pages of records into one output.
type Writer interface {
	Write(rows []model.Record) error
	Close() error
}

// Validate reports whether format is supported.
func Validate(format string) error {
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q: must be one of %s", format, strings.Join(Formats, ", "))
}

// NewWriter creates a Writer for format on top of w. Closing the Writer does
// not close w.
func NewWriter(format string, w io.Writer, columns []string) (Writer, error) {
	switch format {
	case CSV:
		return newCSVWriter(w, columns)
	case JSON:
		return newJSONWriter(w, columns), nil
	case Parquet:
		return newParquetWriter(w, columns), nil
	}
	return nil, Validate(format)
}

// FileName returns the output file name for a table.
func FileName(table, format string) string {
	return table + "." + format
}

// Create opens path (creating parent directories) and returns a Writer that
// closes the file on Close.
func Create(path, format string, columns []string) (Writer, error) {
	if err := Validate(format); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	w, err := NewWriter(format, f, columns)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileWriter{Writer: w, file: f}, nil
}

type fileWriter struct {
	Writer
	file *os.File
}

func (f *fileWriter) Close() error {
	err := f.Writer.Close()
	if cerr := f.file.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}

// Copy writes every page of batches to w and returns the number of rows
// written. It does not close w.
func Copy(w Writer, batches model.BatchSeq) (int, error) {
	total := 0
	for page, err := range batches {
		if err != nil {
			return total, err
		}
		if err := w.Write(page); err != nil {
			return total, err
		}
		total += len(page)
	}
	return total, nil
}

package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels used with errors.Is to classify failures.
var (
	ErrConfig     = errors.New("configuration error")
	ErrCycle      = errors.New("cyclic dependency")
	ErrQuery      = errors.New("query error")
	ErrGeneration = errors.New("generation error")
)

// ConfigError reports a malformed definition. Path and Run identify the
// offending file and run when known.
type ConfigError struct {
	Path string
	Run  string
	Err  error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Run != "" {
		fmt.Fprintf(&b, " (run %s)", e.Run)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// NewConfigError is a shorthand for a formatted ConfigError.
func NewConfigError(path, run, format string, args ...any) error {
	return &ConfigError{Path: path, Run: run, Err: fmt.Errorf(format, args...)}
}

// CycleError lists every simple cycle found in a dependency graph.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = strings.Join(append(append([]string{}, c...), c[0]), " -> ")
	}
	return fmt.Sprintf("cyclic dependencies detected: %s", strings.Join(parts, "; "))
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle || target == ErrConfig }

// QueryError keeps the SQL text of a failed query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v\n  query: %s", e.Err, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// GenerationError reports a failure inside a generation function.
type GenerationError struct {
	RunKey string
	Index  int
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("run %s failed at index %d: %v", e.RunKey, e.Index, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

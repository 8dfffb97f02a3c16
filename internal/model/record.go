package model

import "iter"

// Record is one generated or queried row keyed by column name.
type Record map[string]any

// Args is the single argument passed to a generation function.
type Args struct {
	// Index is 0-based.
	Index int `msgpack:"index"`
	// ID is Index+1.
	ID     int    `msgpack:"id"`
	Params Record `msgpack:"params"`
}

// Func is a unary generation function. Bind is called once per chunk with a
// seed derived from the run and the chunk position, and returns the callable
// used for every item in that chunk. A nil Record means "no value".
type Func interface {
	Bind(seed uint64) func(Args) (Record, error)
}

// FuncOf adapts a plain Go function to Func. The seed is ignored.
type FuncOf func(Args) (Record, error)

// Bind implements Func.
func (f FuncOf) Bind(uint64) func(Args) (Record, error) { return f }

// Metadata is the persisted outcome of a completed run.
type Metadata struct {
	RunKey       string
	Version      string
	GenerationID string
}

// BatchSeq is a lazy sequence of row pages. Every range over it starts again
// from the first page.
type BatchSeq = iter.Seq2[[]Record, error]

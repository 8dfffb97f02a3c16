// Package executor generates the records of one run.
//
// An executor counts the rows of the run's source query, splits [0, target)
// into batches and every batch into chunks, evaluates the chunks on a worker
// pool and stages each batch before moving to the next one. Only one batch is
// held in memory at a time.
package executor

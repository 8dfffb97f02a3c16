// Package dag builds and analyzes the dependency graphs gridseed schedules
// from: one over run keys for generation and one over group names for
// export.
//
// The graph keeps discovery order so that cycle reports, ancestor queries and
// the topological order are reproducible for identical input.
package dag

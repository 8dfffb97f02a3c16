// Package engine drives a generation: it orders the runs of a project,
// decides which of them are stale and regenerates those one at a time.
//
// A run is skipped when its own metadata carries the current node version,
// no ancestor was regenerated during this generation, and every ancestor's
// metadata carries that ancestor's current version. Regeneration therefore
// propagates to every descendant of a changed run.
package engine

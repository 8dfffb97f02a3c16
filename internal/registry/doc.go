// Package registry provides the glue between group hook blocks and the Go
// code that performs them.
//
// A Registry maps the action type used in a hook body (e.g. `file { ... }`)
// to a compiled handler and the input struct its attributes are decoded into.
// Modules add their actions through Register; nothing is registered globally,
// so every application instance owns its own registry.
//
// Hook bodies are validated against the input schema when groups are parsed,
// and decoded at call time, when the hook arguments are known.
package registry

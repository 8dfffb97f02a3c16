package registry

import (
	"fmt"
	"log/slog"
	"sort"
)

// Module is the interface that all core modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered actions for a single application instance.
type Registry struct {
	actions map[string]*RegisteredAction
}

// New creates an empty registry and registers the given modules into it.
func New(modules ...Module) *Registry {
	r := &Registry{actions: make(map[string]*RegisteredAction)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (*RegisteredAction, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action types, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterAction registers the handler for an action type.
func (r *Registry) RegisterAction(name string, action *RegisteredAction) {
	if _, exists := r.actions[name]; exists {
		panic(fmt.Sprintf("action with name '%s' already registered", name))
	}
	slog.Debug("Registering action.", "name", name)
	r.actions[name] = action
}

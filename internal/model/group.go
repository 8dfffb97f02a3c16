// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file models export groups and their lifecycle hooks.

package model

import "context"

// Phase identifies a group lifecycle hook.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseExport Phase = "export"
	PhaseAfter  Phase = "after"
)

// Phases lists every hook phase in declaration order.
var Phases = []Phase{PhaseBefore, PhaseExport, PhaseAfter}

// Group is a named export scope.
type Group struct {
	Name string
	// Groups are the enclosing parent group names, outermost first.
	Groups []string
	Hooks  map[Phase]Hook
	Path   string
}

// Hook returns the hook for a phase, or nil when the group does not define it.
func (g *Group) Hook(p Phase) Hook {
	if g.Hooks == nil {
		return nil
	}
	return g.Hooks[p]
}

// HookArgs is the single argument passed to a hook.
type HookArgs struct {
	Group string
	// Nodes is set for before and after.
	Nodes []string
	// Name, Columns and Batches are set for export.
	Name    string
	Columns []string
	Batches BatchSeq
}

// Hook is a unary group lifecycle callback.
type Hook interface {
	Call(ctx context.Context, args *HookArgs) error
}

// HookFunc adapts a plain function to Hook.
type HookFunc func(ctx context.Context, args *HookArgs) error

// Call implements Hook.
func (f HookFunc) Call(ctx context.Context, args *HookArgs) error { return f(ctx, args) }

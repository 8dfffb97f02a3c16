// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file models nodes (generated tables) and the runs they are split into.

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SchemaSeparator splits a schema-qualified node name into schema and table.
const SchemaSeparator = "."

// Node is a named generation unit that maps to exactly one output table.
type Node struct {
	// Name is unique across a project and may carry one schema separator.
	Name string
	// Version is the content hash of the definition or an explicit override.
	Version string
	// Groups lists the enclosing group names, outermost first.
	Groups []string
	// Runs are the ordered stages of the node.
	Runs []*Run
	// Path is the definition file the node was parsed from.
	Path string
}

// Run is one execution stage of a node.
type Run struct {
	Key         string
	NodeName    string
	NodeVersion string
	Stage       int
	// Source is the parameterizing query. It is never empty after parsing.
	Source string
	// Wait holds normalized run keys this stage must follow.
	Wait []string
	Func Func
	// Path is the definition file, kept for error reporting.
	Path string
}

// RunKey builds the unique identifier of a node stage.
func RunKey(node string, stage int) string {
	return node + "/" + strconv.Itoa(stage)
}

// ParseRunKey splits a run key into node name and stage index.
func ParseRunKey(key string) (string, int, error) {
	i := strings.LastIndex(key, "/")
	if i <= 0 || i == len(key)-1 {
		return "", 0, fmt.Errorf("invalid run key %q", key)
	}
	stage, err := strconv.Atoi(key[i+1:])
	if err != nil || stage < 0 {
		return "", 0, fmt.Errorf("invalid stage in run key %q", key)
	}
	return key[:i], stage, nil
}

// NormalizeWait turns a wait entry into a run key. A bare node name refers to
// the first stage of that node.
func NormalizeWait(entry string) string {
	if _, _, err := ParseRunKey(entry); err == nil {
		return entry
	}
	return RunKey(entry, 0)
}

// SplitName splits a schema-qualified name. Nested schemas are rejected.
func SplitName(name string) (schema, table string, err error) {
	parts := strings.Split(name, SchemaSeparator)
	switch len(parts) {
	case 1:
		return "", parts[0], nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("invalid table name %q", name)
		}
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("nested schemas are not supported: %q", name)
	}
}

// QuoteIdent quotes a single SQL identifier.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteName quotes a possibly schema-qualified table name.
func QuoteName(name string) (string, error) {
	schema, table, err := SplitName(name)
	if err != nil {
		return "", err
	}
	if schema == "" {
		return QuoteIdent(table), nil
	}
	return QuoteIdent(schema) + "." + QuoteIdent(table), nil
}

// DefaultSource is the query a run without an explicit source reads from:
// every row of the node's own table.
func DefaultSource(name string) (string, error) {
	q, err := QuoteName(name)
	if err != nil {
		return "", err
	}
	return "SELECT * FROM " + q, nil
}

// Project is the parsed content of a source tree.
type Project struct {
	// Nodes in discovery order.
	Nodes []*Node
	// Runs keyed by run key.
	Runs map[string]*Run
	// Keys lists run keys in discovery order.
	Keys   []string
	Groups []*Group
}

// NewProject indexes the given nodes.
func NewProject(nodes []*Node, groups []*Group) *Project {
	p := &Project{
		Nodes:  nodes,
		Runs:   make(map[string]*Run),
		Groups: groups,
	}
	for _, n := range nodes {
		for _, r := range n.Runs {
			p.Runs[r.Key] = r
			p.Keys = append(p.Keys, r.Key)
		}
	}
	return p
}

// Node returns the node with the given name, or nil.
func (p *Project) Node(name string) *Node {
	for _, n := range p.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// LastRun returns the final stage of the named node, whose completion means
// the node's table is in its final state.
func (p *Project) LastRun(name string) (*Run, bool) {
	n := p.Node(name)
	if n == nil || len(n.Runs) == 0 {
		return nil, false
	}
	return n.Runs[len(n.Runs)-1], true
}

// Package group runs the export lifecycle of node groups once generation is
// complete.
package group

import (
	"context"
	"fmt"
	"slices"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/dag"
	"github.com/vk/gridseed/internal/model"
)

// Store is the read surface the exporter pages node tables through.
type Store interface {
	Columns(ctx context.Context, name string) ([]string, error)
	Batches(ctx context.Context, table string, pageSize int) model.BatchSeq
}

// Exporter calls group hooks over the persisted node tables.
type Exporter struct {
	store    Store
	groups   []*model.Group
	nodes    []*model.Node
	pageSize int
}

// New creates an exporter. Nodes are matched to groups by name through
// Node.Groups.
func New(store Store, groups []*model.Group, nodes []*model.Node, pageSize int) *Exporter {
	return &Exporter{store: store, groups: groups, nodes: nodes, pageSize: pageSize}
}

// Run calls `before` from the outermost groups inwards, then `export` and
// `after` from the innermost groups outwards. Each node is exported once, by
// the deepest group that defines an export hook.
func (x *Exporter) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	g, err := dag.BuildGroupGraph(ctx, x.groups)
	if err != nil {
		return err
	}
	order, err := g.Order()
	if err != nil {
		return err
	}

	byName := make(map[string]*model.Group, len(x.groups))
	for _, grp := range x.groups {
		byName[grp.Name] = grp
	}

	for _, name := range order {
		grp := byName[name]
		args := &model.HookArgs{Group: name, Nodes: x.members(name)}
		if err := x.call(ctx, grp, model.PhaseBefore, args); err != nil {
			return err
		}
	}

	exported := make(map[string]bool, len(x.nodes))
	for i := len(order) - 1; i >= 0; i-- {
		grp := byName[order[i]]
		members := x.members(grp.Name)

		if hook := grp.Hook(model.PhaseExport); hook != nil {
			for _, node := range members {
				if exported[node] {
					continue
				}
				if err := x.export(ctx, grp, hook, node); err != nil {
					return err
				}
				exported[node] = true
			}
		} else {
			logger.Info("Group phase not executed.", "group", grp.Name, "phase", model.PhaseExport)
		}

		args := &model.HookArgs{Group: grp.Name, Nodes: members}
		if err := x.call(ctx, grp, model.PhaseAfter, args); err != nil {
			return err
		}
	}

	logger.Info("📦 Groups exported.", "groups", len(order), "nodes", len(exported))
	return nil
}

func (x *Exporter) export(ctx context.Context, grp *model.Group, hook model.Hook, node string) error {
	cols, err := x.store.Columns(ctx, node)
	if err != nil {
		return fmt.Errorf("group %s: export of %s: %w", grp.Name, node, err)
	}
	args := &model.HookArgs{
		Group:   grp.Name,
		Name:    node,
		Columns: cols,
		Batches: x.store.Batches(ctx, node, x.pageSize),
	}
	ctxlog.FromContext(ctx).Debug("Exporting node.", "group", grp.Name, "node", node, "columns", len(cols))
	if err := hook.Call(ctx, args); err != nil {
		return fmt.Errorf("group %s: export of %s: %w", grp.Name, node, err)
	}
	return nil
}

func (x *Exporter) call(ctx context.Context, grp *model.Group, phase model.Phase, args *model.HookArgs) error {
	hook := grp.Hook(phase)
	if hook == nil {
		ctxlog.FromContext(ctx).Info("Group phase not executed.", "group", grp.Name, "phase", phase)
		return nil
	}
	if err := hook.Call(ctx, args); err != nil {
		return fmt.Errorf("group %s: %s: %w", grp.Name, phase, err)
	}
	return nil
}

// members returns the names of the nodes belonging to group, in node order.
func (x *Exporter) members(group string) []string {
	var out []string
	for _, n := range x.nodes {
		if slices.Contains(n.Groups, group) {
			out = append(out, n.Name)
		}
	}
	return out
}

package dag

import (
	"context"
	"strings"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
)

// DepsFunc extracts the table names a query reads from.
type DepsFunc func(query string) ([]string, error)

// BuildRunGraph constructs the generation graph over run keys. Edges come
// from the implicit previous-stage dependency, from `wait` entries, and, when
// deps is non-nil, from tables referenced by each run's source query.
//
// An inferred reference to node N points at N's last stage: only then is N's
// table final. References to the run's own node and to tables that are not
// nodes are ignored. A `wait` entry naming an unknown run is a configuration
// error.
func BuildRunGraph(ctx context.Context, p *model.Project, deps DepsFunc) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building run graph.", "runs", len(p.Keys))

	g := New()
	for _, key := range p.Keys {
		g.AddNode(key)
	}

	byName := make(map[string]*model.Node, len(p.Nodes))
	for _, n := range p.Nodes {
		byName[strings.ToLower(n.Name)] = n
	}

	for _, key := range p.Keys {
		run := p.Runs[key]

		if run.Stage > 0 {
			if err := g.AddEdge(model.RunKey(run.NodeName, run.Stage-1), key); err != nil {
				return nil, &model.ConfigError{Path: run.Path, Run: key, Err: err}
			}
		}

		for _, w := range run.Wait {
			if !g.Has(w) {
				return nil, model.NewConfigError(run.Path, key, "wait references unknown run %q", w)
			}
			if err := g.AddEdge(w, key); err != nil {
				return nil, &model.ConfigError{Path: run.Path, Run: key, Err: err}
			}
		}

		if deps == nil {
			continue
		}
		tables, err := deps(run.Source)
		if err != nil {
			return nil, &model.ConfigError{Path: run.Path, Run: key, Err: err}
		}
		for _, table := range tables {
			n, ok := byName[strings.ToLower(table)]
			if !ok {
				logger.Debug("Source references a table that is not a node.", "run_key", key, "table", table)
				continue
			}
			if n.Name == run.NodeName || len(n.Runs) == 0 {
				continue
			}
			dep := n.Runs[len(n.Runs)-1].Key
			if err := g.AddEdge(dep, key); err != nil {
				return nil, &model.ConfigError{Path: run.Path, Run: key, Err: err}
			}
			logger.Debug("Inferred dependency from source query.", "run_key", key, "depends_on", dep)
		}
	}

	logger.Debug("Run graph built.", "nodes", g.Len())
	return g, nil
}

// BuildGroupGraph constructs the export graph over group names, with an edge
// from every known enclosing group to the groups nested in it.
func BuildGroupGraph(ctx context.Context, groups []*model.Group) (*Graph, error) {
	g := New()
	for _, grp := range groups {
		g.AddNode(grp.Name)
	}
	for _, grp := range groups {
		for _, parent := range grp.Groups {
			if !g.Has(parent) {
				continue
			}
			if err := g.AddEdge(parent, grp.Name); err != nil {
				return nil, model.NewConfigError(grp.Path, "", "group %s: %v", grp.Name, err)
			}
		}
	}
	ctxlog.FromContext(ctx).Debug("Group graph built.", "groups", g.Len())
	return g, nil
}

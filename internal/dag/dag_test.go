package dag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
)

func graphOf(t *testing.T, nodes []string, edges [][2]string) *Graph {
	t.Helper()
	g := New()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.Nodes())
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("a") // Test idempotency

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"a", "b"}, g.Nodes())
	assert.True(t, g.Has("a"))
	assert.False(t, g.Has("c"))
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := graphOf(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "b"}})

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deps)

		dependents, err := g.Dependents("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, dependents)
	})

	t.Run("error cases", func(t *testing.T) {
		g := graphOf(t, []string{"a"}, nil)

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		_, err = g.Dependencies("dne")
		assert.ErrorContains(t, err, "node not found")
	})
}

func TestCycles(t *testing.T) {
	t.Run("acyclic graph has none", func(t *testing.T) {
		g := graphOf(t, []string{"a", "b", "c", "d"}, [][2]string{
			{"a", "b"}, {"b", "c"}, {"a", "c"}, {"c", "d"},
		})
		assert.Empty(t, g.Cycles())
	})

	t.Run("direct cycle", func(t *testing.T) {
		g := graphOf(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}})
		assert.Equal(t, [][]string{{"a", "b"}}, g.Cycles())
	})

	t.Run("self edge", func(t *testing.T) {
		g := graphOf(t, []string{"a"}, [][2]string{{"a", "a"}})
		assert.Equal(t, [][]string{{"a"}}, g.Cycles())
	})

	t.Run("every simple cycle is reported", func(t *testing.T) {
		// a -> b -> c -> a and b -> d -> b share b.
		g := graphOf(t, []string{"a", "b", "c", "d", "e"}, [][2]string{
			{"a", "b"}, {"b", "c"}, {"c", "a"}, {"b", "d"}, {"d", "b"}, {"d", "e"},
		})
		assert.Equal(t, [][]string{{"a", "b", "c"}, {"b", "d"}}, g.Cycles())
	})

	t.Run("overlapping cycles through the same start", func(t *testing.T) {
		g := graphOf(t, []string{"a", "b", "c"}, [][2]string{
			{"a", "b"}, {"b", "a"}, {"a", "c"}, {"c", "a"}, {"b", "c"},
		})
		assert.ElementsMatch(t, [][]string{{"a", "b"}, {"a", "b", "c"}, {"a", "c"}}, g.Cycles())
	})
}

func TestOrder(t *testing.T) {
	t.Run("ties break by discovery order", func(t *testing.T) {
		g := graphOf(t, []string{"c", "a", "b", "d"}, [][2]string{{"a", "d"}, {"c", "d"}})
		order, err := g.Order()
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b", "d"}, order)
	})

	t.Run("dependencies come first", func(t *testing.T) {
		g := graphOf(t, []string{"d", "c", "b", "a"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}})
		order, err := g.Order()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	})

	t.Run("cycles fail with the full list", func(t *testing.T) {
		g := graphOf(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "a"}, {"c", "c"}})
		_, err := g.Order()
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrCycle))

		var cycErr *model.CycleError
		require.True(t, errors.As(err, &cycErr))
		assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, cycErr.Cycles)
	})
}

func TestAncestors(t *testing.T) {
	g := graphOf(t, []string{"a", "b", "c", "d", "x"}, [][2]string{
		{"a", "b"}, {"b", "c"}, {"d", "c"},
	})

	anc, err := g.Ancestors("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, anc)

	anc, err = g.Ancestors("a")
	require.NoError(t, err)
	assert.Empty(t, anc)

	desc, err := g.Descendants("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, desc)

	_, err = g.Ancestors("missing")
	assert.Error(t, err)
}

func project(nodes ...*model.Node) *model.Project {
	for _, n := range nodes {
		for i, r := range n.Runs {
			r.NodeName = n.Name
			r.Stage = i
			r.Key = model.RunKey(n.Name, i)
		}
	}
	return model.NewProject(nodes, nil)
}

func TestBuildRunGraph(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("stages follow each other in every order", func(t *testing.T) {
		p := project(
			&model.Node{Name: "b", Runs: []*model.Run{{}, {}, {}}},
			&model.Node{Name: "a", Runs: []*model.Run{{}, {Wait: []string{"b/2"}}}},
		)
		g, err := BuildRunGraph(ctx, p, nil)
		require.NoError(t, err)
		order, err := g.Order()
		require.NoError(t, err)
		assert.Equal(t, []string{"b/0", "b/1", "b/2", "a/0", "a/1"}, order)
	})

	t.Run("unknown wait is a configuration error", func(t *testing.T) {
		p := project(&model.Node{Name: "a", Path: "a.node.hcl", Runs: []*model.Run{{Wait: []string{"ghost/0"}}}})
		_, err := BuildRunGraph(ctx, p, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrConfig))
		assert.Contains(t, err.Error(), "a/0")
		assert.Contains(t, err.Error(), "ghost/0")
	})

	t.Run("source references are inferred against the last stage", func(t *testing.T) {
		p := project(
			&model.Node{Name: "orders", Runs: []*model.Run{{Source: "SELECT * FROM Users JOIN seed"}}},
			&model.Node{Name: "users", Runs: []*model.Run{{Source: "SELECT 1"}, {Source: "SELECT * FROM users"}}},
		)
		deps := func(q string) ([]string, error) {
			switch q {
			case "SELECT * FROM Users JOIN seed":
				return []string{"Users", "seed"}, nil
			case "SELECT * FROM users":
				return []string{"users"}, nil
			}
			return nil, nil
		}
		g, err := BuildRunGraph(ctx, p, deps)
		require.NoError(t, err)

		anc, err := g.Ancestors("orders/0")
		require.NoError(t, err)
		assert.Equal(t, []string{"users/0", "users/1"}, anc)

		order, err := g.Order()
		require.NoError(t, err)
		assert.Equal(t, []string{"users/0", "users/1", "orders/0"}, order)
	})

	t.Run("wait cycle is reported with the offending runs", func(t *testing.T) {
		p := project(
			&model.Node{Name: "a", Runs: []*model.Run{{Wait: []string{"b/0"}}}},
			&model.Node{Name: "b", Runs: []*model.Run{{Wait: []string{"a/0"}}}},
		)
		g, err := BuildRunGraph(ctx, p, nil)
		require.NoError(t, err)
		_, err = g.Order()
		var cycErr *model.CycleError
		require.True(t, errors.As(err, &cycErr))
		assert.Equal(t, [][]string{{"a/0", "b/0"}}, cycErr.Cycles)
	})
}

func TestBuildGroupGraph(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, err := BuildGroupGraph(ctx, []*model.Group{
		{Name: "child", Groups: []string{"root", "missing"}},
		{Name: "root"},
	})
	require.NoError(t, err)

	order, err := g.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "child"}, order)
}

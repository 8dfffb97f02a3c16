package print

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
)

func pages(sizes ...int) model.BatchSeq {
	return func(yield func([]model.Record, error) bool) {
		for _, n := range sizes {
			if !yield(make([]model.Record, n), nil) {
				return
			}
		}
	}
}

func TestPrint(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	var buf bytes.Buffer
	m := &Module{Out: &buf}

	require.NoError(t, m.Print(ctx, &Input{}, &model.HookArgs{Group: "db", Nodes: []string{"a", "b"}}))
	require.NoError(t, m.Print(ctx, &Input{CountRows: true}, &model.HookArgs{Group: "db", Name: "a", Columns: []string{"id", "name"}, Batches: pages(2, 2, 1)}))
	require.NoError(t, m.Print(ctx, &Input{Message: "done", CountRows: true}, &model.HookArgs{Group: "db"}))

	assert.Equal(t, "db: [a, b]\ndb: a (id, name)\n      rows = 5\ndone\n", buf.String())
}

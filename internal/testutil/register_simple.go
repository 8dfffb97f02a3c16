package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vk/gridseed/internal/model"
	"github.com/vk/gridseed/internal/registry"
)

// SpyModule registers the `spy` action, which records every call it receives
// as "<tag> <group> <detail>". Export calls also count the rows they read.
type SpyModule struct {
	mu    sync.Mutex
	Calls []string
	Rows  map[string]int
}

type spyInput struct {
	Tag string `hcl:"tag"`
}

// Register implements the registry.Module interface.
func (m *SpyModule) Register(r *registry.Registry) {
	r.RegisterAction("spy", registry.Action(m.call))
}

func (m *SpyModule) call(_ context.Context, in *spyInput, args *model.HookArgs) error {
	detail := strings.Join(args.Nodes, ",")
	rows := 0
	if args.Batches != nil {
		detail = args.Name
		for page, err := range args.Batches {
			if err != nil {
				return err
			}
			rows += len(page)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, fmt.Sprintf("%s %s %s", in.Tag, args.Group, detail))
	if args.Batches != nil {
		if m.Rows == nil {
			m.Rows = map[string]int{}
		}
		m.Rows[args.Name] += rows
	}
	return nil
}

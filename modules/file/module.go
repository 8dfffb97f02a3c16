// Package file implements the `file` hook action: on export it writes a node
// to <dir>/<name>.<format>; in before and after hooks it prepares the
// directory.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
	"github.com/vk/gridseed/internal/registry"
	"github.com/vk/gridseed/internal/tabular"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of a file block.
type Input struct {
	Dir    string `hcl:"dir"`
	Format string `hcl:"format,optional"`
	// Clean removes the directory content in before hooks.
	Clean bool `hcl:"clean,optional"`
}

// Export is the handler for the 'file' action.
func Export(ctx context.Context, input *Input, args *model.HookArgs) error {
	logger := ctxlog.FromContext(ctx)
	format := input.Format
	if format == "" {
		format = tabular.CSV
	}
	if err := tabular.Validate(format); err != nil {
		return err
	}

	if args.Batches == nil {
		if input.Clean {
			logger.Debug("Cleaning export directory.", "dir", input.Dir)
			if err := os.RemoveAll(input.Dir); err != nil {
				return fmt.Errorf("failed to clean %s: %w", input.Dir, err)
			}
		}
		return os.MkdirAll(input.Dir, 0o755)
	}

	if err := os.MkdirAll(input.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(input.Dir, tabular.FileName(args.Name, format))
	w, err := tabular.Create(path, format, args.Columns)
	if err != nil {
		return err
	}
	rows, err := tabular.Copy(w, args.Batches)
	if err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Info("📦 Node exported.", "node", args.Name, "path", path, "rows", rows)
	return nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("file", registry.Action(Export))
}

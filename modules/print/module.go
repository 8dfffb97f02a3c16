// Package print implements the `print` hook action, which writes a line per
// call to the application output and, on export, optionally counts rows.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
	"github.com/vk/gridseed/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives printed lines. Defaults to stdout.
	Out io.Writer
}

// Input defines the arguments of a print block.
type Input struct {
	Message   string `hcl:"message,optional"`
	CountRows bool   `hcl:"count_rows,optional"`
}

func (m *Module) out() io.Writer {
	if m.Out == nil {
		return os.Stdout
	}
	return m.Out
}

// Print is the handler for the 'print' action.
func (m *Module) Print(ctx context.Context, input *Input, args *model.HookArgs) error {
	msg := input.Message
	if msg == "" {
		msg = defaultMessage(args)
	}
	if _, err := fmt.Fprintln(m.out(), msg); err != nil {
		return err
	}
	if !input.CountRows || args.Batches == nil {
		return nil
	}

	rows, pages := 0, 0
	for page, err := range args.Batches {
		if err != nil {
			return err
		}
		rows += len(page)
		pages++
	}
	ctxlog.FromContext(ctx).Debug("Rows counted.", "node", args.Name, "rows", rows, "pages", pages)
	_, err := fmt.Fprintf(m.out(), "      rows = %d\n", rows)
	return err
}

func defaultMessage(args *model.HookArgs) string {
	if args.Name != "" {
		return fmt.Sprintf("%s: %s (%s)", args.Group, args.Name, strings.Join(args.Columns, ", "))
	}
	return fmt.Sprintf("%s: [%s]", args.Group, strings.Join(args.Nodes, ", "))
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("print", registry.Action(m.Print))
}

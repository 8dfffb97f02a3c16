package registry

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/hclfunc"
	"github.com/vk/gridseed/internal/model"
)

// Hook is a group hook bound to a registered action. It implements model.Hook.
type Hook struct {
	// Type is the action type, e.g. "file".
	Type string
	// Param is the name the hook argument is bound to inside Body.
	Param  string
	Body   hcl.Body
	Path   string
	action *RegisteredAction
}

// NewHook binds an action block to its handler. The body is checked against
// the action's input schema but not evaluated.
func (r *Registry) NewHook(actionType, param string, body hcl.Body, path string) (*Hook, error) {
	action, ok := r.Lookup(actionType)
	if !ok {
		return nil, model.NewConfigError(path, "", "unknown action type %q (known: %v)", actionType, r.Names())
	}
	schema, _ := gohcl.ImpliedBodySchema(action.NewInput())
	if _, diags := body.Content(schema); diags.HasErrors() {
		return nil, &model.ConfigError{Path: path, Err: fmt.Errorf("action %s: %w", actionType, diags)}
	}
	return &Hook{Type: actionType, Param: param, Body: body, Path: path, action: action}, nil
}

// Call decodes the action body against args and runs the handler.
func (h *Hook) Call(ctx context.Context, args *model.HookArgs) error {
	logger := ctxlog.FromContext(ctx).With("action", h.Type)
	input := h.action.NewInput()
	if diags := gohcl.DecodeBody(h.Body, hclfunc.HookContext(h.Param, args), input); diags.HasErrors() {
		return &model.ConfigError{Path: h.Path, Err: fmt.Errorf("action %s: %w", h.Type, diags)}
	}
	logger.Debug("Calling action.", "group", args.Group, "name", args.Name)
	return h.action.Fn(ctxlog.WithLogger(ctx, logger), input, args)
}

package registry

import (
	"context"
	"fmt"

	"github.com/vk/gridseed/internal/model"
)

// RegisteredAction holds the compiled Go parts of a hook action.
type RegisteredAction struct {
	// NewInput returns a pointer to the struct the action body decodes into.
	// Fields are bound with `hcl` struct tags.
	NewInput func() any
	Fn       func(ctx context.Context, input any, args *model.HookArgs) error
}

// Action builds a RegisteredAction from a typed handler.
func Action[T any](fn func(ctx context.Context, input *T, args *model.HookArgs) error) *RegisteredAction {
	return &RegisteredAction{
		NewInput: func() any { return new(T) },
		Fn: func(ctx context.Context, input any, args *model.HookArgs) error {
			in, ok := input.(*T)
			if !ok {
				return fmt.Errorf("unexpected input type %T", input)
			}
			return fn(ctx, in, args)
		},
	}
}

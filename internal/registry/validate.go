package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	exprType = reflect.TypeOf((*hcl.Expression)(nil)).Elem()
	bodyType = reflect.TypeOf((*hcl.Body)(nil)).Elem()
	valType  = reflect.TypeOf(cty.Value{})
)

// Validate checks that every registered action decodes into a struct whose
// tagged fields have a cty equivalent, so that hook bodies fail at parse time
// instead of at call time.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, name := range r.Names() {
		action := r.actions[name]
		if action.NewInput == nil || action.Fn == nil {
			errs = append(errs, fmt.Sprintf("action '%s': missing input constructor or handler", name))
			continue
		}

		input := reflect.TypeOf(action.NewInput())
		if input == nil || input.Kind() != reflect.Ptr || input.Elem().Kind() != reflect.Struct {
			errs = append(errs, fmt.Sprintf("action '%s': input must be a pointer to a struct, got %v", name, input))
			continue
		}

		st := input.Elem()
		for i := 0; i < st.NumField(); i++ {
			field := st.Field(i)
			tag := strings.Split(field.Tag.Get("hcl"), ",")[0]
			if !field.IsExported() || tag == "" {
				continue
			}
			if field.Type == exprType || field.Type == bodyType || field.Type == valType {
				continue
			}
			if _, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface()); err != nil {
				errs = append(errs, fmt.Sprintf("action '%s', attribute '%s': no cty type for Go field type %s: %v", name, tag, field.Type, err))
			}
		}
		logger.Debug("Action validated.", "action", name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

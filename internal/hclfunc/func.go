// Package hclfunc evaluates HCL expressions for gridseed: the generation
// functions declared in node files and the action bodies of group hooks.
package hclfunc

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/gridseed/internal/model"
	"github.com/zclconf/go-cty/cty"
)

// Func is a generation function compiled from a `func "<param>" { result = ... }`
// block. It implements model.Func.
type Func struct {
	// Param is the name the single argument is bound to.
	Param  string
	Result hcl.Expression
}

// Bind implements model.Func. Each call gets its own evaluation context and
// random stream.
func (f *Func) Bind(seed uint64) func(model.Args) (model.Record, error) {
	ectx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: Generators(seed),
	}
	return func(a model.Args) (model.Record, error) {
		arg, err := argsVal(a)
		if err != nil {
			return nil, err
		}
		ectx.Variables[f.Param] = arg

		val, diags := f.Result.Value(ectx)
		if diags.HasErrors() {
			return nil, diags
		}
		if val.IsNull() {
			return nil, nil
		}
		ty := val.Type()
		if !ty.IsObjectType() && !ty.IsMapType() {
			return nil, fmt.Errorf("result must be an object or null, got %s", ty.FriendlyName())
		}
		native, err := FromCty(val)
		if err != nil {
			return nil, err
		}
		return model.Record(native.(map[string]any)), nil
	}
}

func argsVal(a model.Args) (cty.Value, error) {
	params, err := ToCty(a.Params)
	if err != nil {
		return cty.NilVal, fmt.Errorf("params: %w", err)
	}
	return cty.ObjectVal(map[string]cty.Value{
		"index":  cty.NumberIntVal(int64(a.Index)),
		"id":     cty.NumberIntVal(int64(a.ID)),
		"params": params,
	}), nil
}

// StaticContext is used for definition attributes that must not depend on
// any variable, such as a run's source or wait list.
func StaticContext() *hcl.EvalContext {
	return &hcl.EvalContext{Functions: Stdlib()}
}

// HookContext binds hook arguments under param.
func HookContext(param string, args *model.HookArgs) *hcl.EvalContext {
	nodes := make([]cty.Value, len(args.Nodes))
	for i, n := range args.Nodes {
		nodes[i] = cty.StringVal(n)
	}
	columns := make([]cty.Value, len(args.Columns))
	for i, c := range args.Columns {
		columns[i] = cty.StringVal(c)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			param: cty.ObjectVal(map[string]cty.Value{
				"group":   cty.StringVal(args.Group),
				"name":    cty.StringVal(args.Name),
				"nodes":   listOrEmpty(nodes),
				"columns": listOrEmpty(columns),
			}),
		},
		Functions: Stdlib(),
	}
}

func listOrEmpty(vals []cty.Value) cty.Value {
	if len(vals) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	return cty.ListVal(vals)
}

package parser

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/fsutil"
	"github.com/vk/gridseed/internal/hclfunc"
	"github.com/vk/gridseed/internal/loader"
	"github.com/vk/gridseed/internal/model"
	"github.com/zclconf/go-cty/cty"
)

// DefaultNodeExt is the suffix of node definition files.
const DefaultNodeExt = ".node.hcl"

// nodeRoot is the top level of a node file.
type nodeRoot struct {
	Name    hcl.Expression `hcl:"name,optional"`
	Version hcl.Expression `hcl:"version,optional"`
	Groups  hcl.Expression `hcl:"groups,optional"`
	Runs    []*runBlock    `hcl:"run,block"`
}

type runBlock struct {
	Source hcl.Expression `hcl:"source,optional"`
	Wait   hcl.Expression `hcl:"wait,optional"`
	Func   *funcBlock     `hcl:"func,block"`
}

type funcBlock struct {
	Param  string         `hcl:"param,label"`
	Result hcl.Expression `hcl:"result"`
}

// ParseNodes parses every file under root whose name ends with ext.
func ParseNodes(ctx context.Context, root, ext string) (*model.Project, error) {
	logger := ctxlog.FromContext(ctx)
	if ext == "" {
		ext = DefaultNodeExt
	}

	paths, err := fsutil.FindFilesByExtension(root, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if len(paths) == 0 {
		logger.Warn("No node definition files found.", "path", root, "ext", ext)
	}

	nodes := make([]*model.Node, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		mod, err := loader.Load(path)
		if err != nil {
			return nil, err
		}
		node, err := parseNode(root, ext, mod)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[node.Name]; ok {
			return nil, model.NewConfigError(path, "", "duplicate node name %q, already defined in %s", node.Name, prev)
		}
		seen[node.Name] = path
		nodes = append(nodes, node)
		logger.Debug("Node parsed.", "node", node.Name, "version", node.Version, "runs", len(node.Runs), "path", path)
	}

	p := model.NewProject(nodes, nil)
	logger.Info("✅ Node definitions parsed.", "nodes", len(nodes), "runs", len(p.Keys))
	return p, nil
}

func parseNode(root, ext string, mod *loader.Module) (*model.Node, error) {
	path := mod.Path
	if err := checkNodeShape(path, mod.Body); err != nil {
		return nil, err
	}

	var nr nodeRoot
	if diags := gohcl.DecodeBody(mod.Body, hclfunc.StaticContext(), &nr); diags.HasErrors() {
		return nil, &model.ConfigError{Path: path, Err: diags}
	}

	node := &model.Node{Path: path, Version: mod.Version}
	node.Name = fsutil.TrimExtension(path, ext)
	if err := optionalString(nr.Name, "name", &node.Name); err != nil {
		return nil, &model.ConfigError{Path: path, Err: err}
	}
	if _, _, err := model.SplitName(node.Name); err != nil {
		return nil, &model.ConfigError{Path: path, Err: err}
	}
	if err := optionalString(nr.Version, "version", &node.Version); err != nil {
		return nil, &model.ConfigError{Path: path, Err: err}
	}

	groups, err := fsutil.DirSegments(root, path)
	if err != nil {
		return nil, &model.ConfigError{Path: path, Err: err}
	}
	node.Groups = groups
	if err := optionalStrings(nr.Groups, "groups", &node.Groups); err != nil {
		return nil, &model.ConfigError{Path: path, Err: err}
	}

	defaultSource, err := model.DefaultSource(node.Name)
	if err != nil {
		return nil, &model.ConfigError{Path: path, Err: err}
	}
	for i, rb := range nr.Runs {
		key := model.RunKey(node.Name, i)
		run := &model.Run{
			Key:         key,
			NodeName:    node.Name,
			NodeVersion: node.Version,
			Stage:       i,
			Source:      defaultSource,
			Path:        path,
		}
		if err := optionalString(rb.Source, "source", &run.Source); err != nil {
			return nil, &model.ConfigError{Path: path, Run: key, Err: err}
		}
		var wait []string
		if err := optionalStrings(rb.Wait, "wait", &wait); err != nil {
			return nil, &model.ConfigError{Path: path, Run: key, Err: err}
		}
		for _, w := range wait {
			run.Wait = append(run.Wait, model.NormalizeWait(w))
		}
		run.Func = &hclfunc.Func{Param: rb.Func.Param, Result: rb.Func.Result}
		node.Runs = append(node.Runs, run)
	}
	return node, nil
}

// checkNodeShape reports the structural mistakes that decoding alone would
// describe poorly.
func checkNodeShape(path string, body *hclsyntax.Body) error {
	if _, ok := body.Attributes["run"]; ok {
		return model.NewConfigError(path, "", "run must be given as one or more blocks, not as an attribute")
	}
	stage := 0
	for _, block := range body.Blocks {
		if block.Type != "run" {
			continue
		}
		key := fmt.Sprintf("#%d", stage)
		stage++
		if len(block.Labels) != 0 {
			return model.NewConfigError(path, key, "run blocks take no labels")
		}
		var funcs []*hclsyntax.Block
		for _, b := range block.Body.Blocks {
			if b.Type == "func" {
				funcs = append(funcs, b)
			}
		}
		switch {
		case len(funcs) == 0:
			if _, ok := block.Body.Attributes["func"]; ok {
				return model.NewConfigError(path, key, "func must be given as a block, not as an attribute")
			}
			return model.NewConfigError(path, key, "func not found")
		case len(funcs) > 1:
			return model.NewConfigError(path, key, "only one func is allowed per run, got %d", len(funcs))
		}
		if n := len(funcs[0].Labels); n != 1 {
			return model.NewConfigError(path, key, "func must accept exactly one parameter, got %d", n)
		}
		if _, ok := funcs[0].Body.Attributes["result"]; !ok {
			return model.NewConfigError(path, key, "func has no result")
		}
	}
	if stage == 0 {
		return model.NewConfigError(path, "", "no run block found")
	}
	return nil
}

// defined reports whether an optional attribute was present in the source.
// gohcl fills omitted optional expressions with a zero-width placeholder.
func defined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}

func optionalString(expr hcl.Expression, attr string, dst *string) error {
	if !defined(expr) {
		return nil
	}
	val, diags := expr.Value(hclfunc.StaticContext())
	if diags.HasErrors() {
		return fmt.Errorf("%s: %w", attr, diags)
	}
	if val.IsNull() {
		return nil
	}
	if !val.IsKnown() || !val.Type().Equals(cty.String) {
		return fmt.Errorf("%s must be a string, got %s", attr, val.Type().FriendlyName())
	}
	*dst = val.AsString()
	return nil
}

func optionalStrings(expr hcl.Expression, attr string, dst *[]string) error {
	if !defined(expr) {
		return nil
	}
	val, diags := expr.Value(hclfunc.StaticContext())
	if diags.HasErrors() {
		return fmt.Errorf("%s: %w", attr, diags)
	}
	if val.IsNull() {
		return nil
	}
	ty := val.Type()
	if !val.IsKnown() || !(ty.IsListType() || ty.IsTupleType() || ty.IsSetType()) {
		return fmt.Errorf("%s must be a list of strings, got %s", attr, ty.FriendlyName())
	}
	out := make([]string, 0, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		_, v := it.Element()
		if v.IsNull() || !v.Type().Equals(cty.String) {
			return fmt.Errorf("%s must be a list of strings, got element of type %s", attr, v.Type().FriendlyName())
		}
		out = append(out, v.AsString())
	}
	*dst = out
	return nil
}

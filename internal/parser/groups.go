package parser

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/fsutil"
	"github.com/vk/gridseed/internal/loader"
	"github.com/vk/gridseed/internal/model"
	"github.com/vk/gridseed/internal/registry"
)

// DefaultGroupExt is the suffix of group definition files.
const DefaultGroupExt = ".group.hcl"

// ParseGroups parses every group file under root. A group is named after the
// directory holding its file; the enclosing directories are its parents.
// Hook actions are bound against reg.
func ParseGroups(ctx context.Context, root, ext string, reg *registry.Registry) ([]*model.Group, error) {
	logger := ctxlog.FromContext(ctx)
	if ext == "" {
		ext = DefaultGroupExt
	}

	paths, err := fsutil.FindFilesByExtension(root, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	groups := make([]*model.Group, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		mod, err := loader.Load(path)
		if err != nil {
			return nil, err
		}
		g, err := parseGroup(root, mod, reg)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[g.Name]; ok {
			return nil, model.NewConfigError(path, "", "duplicate group %q, already defined in %s", g.Name, prev)
		}
		seen[g.Name] = path
		groups = append(groups, g)
		logger.Debug("Group parsed.", "group", g.Name, "parents", g.Groups, "hooks", len(g.Hooks))
	}

	if len(groups) == 0 {
		logger.Debug("No group definition files found.", "path", root, "ext", ext)
	} else {
		logger.Info("✅ Group definitions parsed.", "groups", len(groups))
	}
	return groups, nil
}

func parseGroup(root string, mod *loader.Module, reg *registry.Registry) (*model.Group, error) {
	path := mod.Path
	segments, err := fsutil.DirSegments(root, path)
	if err != nil {
		return nil, &model.ConfigError{Path: path, Err: err}
	}

	g := &model.Group{
		Name:  filepath.Base(filepath.Dir(path)),
		Hooks: make(map[model.Phase]model.Hook),
		Path:  path,
	}
	if len(segments) > 0 {
		g.Groups = segments[:len(segments)-1]
	}

	if len(mod.Body.Attributes) > 0 {
		names := slices.Sorted(maps.Keys(mod.Body.Attributes))
		return nil, model.NewConfigError(path, "", "unexpected attributes %v, only before, export and after blocks are allowed", names)
	}
	for _, block := range mod.Body.Blocks {
		phase := model.Phase(block.Type)
		if !slices.Contains(model.Phases, phase) {
			return nil, model.NewConfigError(path, "", "unexpected block %q, only before, export and after blocks are allowed", block.Type)
		}
		if _, dup := g.Hooks[phase]; dup {
			return nil, model.NewConfigError(path, "", "%s is defined more than once", phase)
		}
		hook, err := parseHook(path, block, reg)
		if err != nil {
			return nil, err
		}
		g.Hooks[phase] = hook
	}
	return g, nil
}

func parseHook(path string, block *hclsyntax.Block, reg *registry.Registry) (*registry.Hook, error) {
	if n := len(block.Labels); n != 1 {
		return nil, model.NewConfigError(path, "", "%s must accept exactly one parameter, got %d", block.Type, n)
	}
	if len(block.Body.Attributes) > 0 {
		return nil, model.NewConfigError(path, "", "%s must contain a single action block and no attributes", block.Type)
	}
	if n := len(block.Body.Blocks); n != 1 {
		return nil, model.NewConfigError(path, "", "%s must contain exactly one action block, got %d", block.Type, n)
	}
	action := block.Body.Blocks[0]
	if len(action.Labels) != 0 {
		return nil, model.NewConfigError(path, "", "%s action %q takes no labels", block.Type, action.Type)
	}
	return reg.NewHook(action.Type, block.Labels[0], action.Body, path)
}

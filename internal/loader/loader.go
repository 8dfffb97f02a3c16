// Package loader reads a single definition file from disk and returns its
// parsed body together with a content hash used as the default version.
//
// Loading has no side effects: the caller owns the returned Module and nothing
// is registered globally.
package loader

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/gridseed/internal/model"
	"golang.org/x/crypto/blake2b"
)

// digestSize is 160 bits.
const digestSize = 20

// ErrModuleNotFound is returned when the artifact does not exist.
var ErrModuleNotFound = errors.New("module not found")

// Module is a loaded definition file.
type Module struct {
	Path    string
	Version string
	File    *hcl.File
	Body    *hclsyntax.Body
}

// Load reads and parses the file at path.
func Load(path string) (*Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(path, src)
}

// Parse parses already-read source. path is used for diagnostics only.
func Parse(path string, src []byte) (*Module, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, &model.ConfigError{Path: path, Err: fmt.Errorf("failed to parse HCL file: %w", diags)}
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, model.NewConfigError(path, "", "unsupported HCL body type %T", file.Body)
	}
	version, err := Hash(src)
	if err != nil {
		return nil, err
	}
	return &Module{Path: path, Version: version, File: file, Body: body}, nil
}

// Hash returns the hex BLAKE2b-160 digest of the canonical form of src.
// Canonical means formatted by hclwrite, so layout-only edits do not change
// the result.
func Hash(src []byte) (string, error) {
	h, err := blake2b.New(digestSize, nil)
	if err != nil {
		return "", err
	}
	h.Write(hclwrite.Format(src))
	return hex.EncodeToString(h.Sum(nil)), nil
}

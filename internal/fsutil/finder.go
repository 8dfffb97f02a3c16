// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. Hidden directories (such as the scratch
// directory) are not descended into. Paths are returned sorted so discovery
// order is stable for identical trees.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		return nil, errors.New("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != rootPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// DirSegments returns the directory names between root and the file at path,
// outermost first. A file directly under root yields no segments.
func DirSegments(rootPath, path string) ([]string, error) {
	rel, err := filepath.Rel(rootPath, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if rel == "." {
		return nil, nil
	}
	if strings.HasPrefix(rel, "..") {
		return nil, errors.New("path " + path + " is outside of " + rootPath)
	}
	return strings.Split(filepath.ToSlash(rel), "/"), nil
}

// TrimExtension strips a (possibly multi-dot) extension from a file's base name.
func TrimExtension(path, extension string) string {
	return strings.TrimSuffix(filepath.Base(path), extension)
}

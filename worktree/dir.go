/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package worktree

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Dir is a Tree backed by a directory on disk, used in workflow mode
// where the pipeline writes into a real SDK checkout.
type Dir struct {
	root string
}

// NewDir returns a Tree rooted at the given directory.
func NewDir(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat worktree root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("worktree root %q is not a directory", root)
	}
	return &Dir{root: root}, nil
}

// List walks the directory, skipping dot-directories (.git and friends).
func (d *Dir) List(_ context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() {
			if strings.HasPrefix(name, ".") && p != d.root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing worktree: %w", err)
	}
	return out, nil
}

func (d *Dir) Read(_ context.Context, path string) (string, error) {
	abs, err := d.resolve(path)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), nil
}

func (d *Dir) Write(_ context.Context, path, content string) error {
	abs, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating parent directories for %s: %w", path, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (d *Dir) Exists(_ context.Context, path string) (bool, error) {
	abs, err := d.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// resolve joins path under the root and refuses escapes.
func (d *Dir) resolve(path string) (string, error) {
	abs := filepath.Join(d.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(d.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes worktree root", path)
	}
	return abs, nil
}

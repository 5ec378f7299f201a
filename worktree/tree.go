/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package worktree is the pipeline's only view of an SDK repository: a
// mapping from relative path to content. The same pipeline code runs
// against a real checkout (Dir) in workflow mode and an in-memory
// snapshot (Mem) in test mode; which one it gets is configuration, not a
// code path.
package worktree

import (
	"context"
)

// Tree is the mutable repository surface. Implementations must be safe
// for concurrent use by a single pipeline run.
type Tree interface {
	// List returns every file path in the tree, relative to its root,
	// in unspecified order.
	List(ctx context.Context) ([]string, error)

	// Read returns a file's content.
	Read(ctx context.Context, path string) (string, error)

	// Write creates or replaces a file.
	Write(ctx context.Context, path, content string) error

	// Exists reports whether a file is present.
	Exists(ctx context.Context, path string) (bool, error)
}

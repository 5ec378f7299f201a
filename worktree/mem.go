/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package worktree

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// Mem is a Tree held entirely in memory, used by test mode and the
// scenario harness. Each Mem owns its own map, so scenarios can never
// leak state into one another.
type Mem struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewMem returns a Tree seeded with a copy of the snapshot.
func NewMem(snapshot map[string]string) *Mem {
	files := make(map[string]string, len(snapshot))
	maps.Copy(files, snapshot)
	return &Mem{files: files}
}

func (m *Mem) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	return out, nil
}

func (m *Mem) Read(_ context.Context, path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("reading %s: file does not exist", path)
	}
	return content, nil
}

func (m *Mem) Write(_ context.Context, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return nil
}

func (m *Mem) Exists(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok, nil
}

// Snapshot returns a copy of the tree's current contents.
func (m *Mem) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.files))
	maps.Copy(out, m.files)
	return out
}

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package worktree

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
)

// ArtifactSink receives debug artifacts: raw model responses, rejected
// patches, built prompts. Sinks are best-effort by contract; a sink
// failure must never influence pipeline outcomes.
type ArtifactSink interface {
	Save(ctx context.Context, name, content string)
}

// NopSink discards artifacts. It is the sink when debug mode is off.
type NopSink struct{}

func (NopSink) Save(context.Context, string, string) {}

// DirSink writes artifacts under a directory, one file per artifact.
type DirSink struct {
	dir string
}

// NewDirSink returns a sink rooted at dir, creating it if needed.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

func (s *DirSink) Save(ctx context.Context, name, content string) {
	log := clog.FromContext(ctx)
	// Artifact names embed file paths; flatten them.
	flat := strings.ReplaceAll(name, "/", "__")
	target := filepath.Join(s.dir, flat)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		log.With("dir", s.dir).With("error", err).Warn("Failed to create artifact directory")
		return
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		log.With("artifact", name).With("error", err).Warn("Failed to save debug artifact")
	}
}

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generation

import (
	"fmt"
	"strings"
	"sync"

	"chainguard.dev/protodrift/impact"
	"chainguard.dev/protodrift/protodiff"
	"chainguard.dev/protodrift/sdklang"
)

// Strategy decides the generation mode per file. Patch mode is chosen
// when it is preferred, the file exists, and no patch attempt for the
// file has failed during this run. A failed patch pins the file to full
// mode for the rest of the run, so there is at most one fallback per
// file.
type Strategy struct {
	preferPatch bool

	mu          sync.Mutex
	patchFailed map[string]bool
}

// NewStrategy returns a Strategy. With preferPatch false every file goes
// straight to full mode.
func NewStrategy(preferPatch bool) *Strategy {
	return &Strategy{
		preferPatch: preferPatch,
		patchFailed: make(map[string]bool),
	}
}

// ModeFor picks the mode for one file. Files that do not exist yet have
// nothing to patch against.
func (s *Strategy) ModeFor(path string, exists bool) Mode {
	if !s.preferPatch || !exists {
		return ModeFull
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patchFailed[path] {
		return ModeFull
	}
	return ModePatch
}

// NotePatchFailure pins a file to full mode for the rest of the run.
func (s *Strategy) NotePatchFailure(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patchFailed[path] = true
}

// BuildRequest assembles the generation request for one affected file.
// The fragment is the per-proto-file slice of the diff; content is the
// file's current contents, empty for proposed files.
func BuildRequest(af impact.AffectedFile, lang sdklang.Language, mode Mode, content, fragment string) Request {
	return Request{
		Mode:     mode,
		Path:     af.Path,
		Language: lang,
		Content:  content,
		Fragment: fragment,
		Guidance: Guidance(af.Elements),
	}
}

// Guidance renders classified element changes as one line each, in
// change-set order, for embedding in prompts.
func Guidance(elements []protodiff.ElementChange) string {
	var b strings.Builder
	for _, ec := range elements {
		b.WriteString("- ")
		b.WriteString(describe(ec))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func describe(ec protodiff.ElementChange) string {
	name := ec.Name
	if ec.Enclosing != "" {
		name = ec.Enclosing + "." + ec.Name
	}
	switch ec.Op {
	case protodiff.OpRenamed:
		old := ec.OldName
		if ec.Enclosing != "" {
			old = ec.Enclosing + "." + ec.OldName
		}
		return fmt.Sprintf("%s %s renamed to %s", ec.Kind, old, name)
	default:
		return fmt.Sprintf("%s %s %s", ec.Kind, name, ec.Op)
	}
}

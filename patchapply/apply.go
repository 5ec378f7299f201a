/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package patchapply applies model-produced unified patches to file
// content. Application fails closed: if any hunk cannot be located within
// the configured fuzz tolerance, the whole patch is rejected and the
// original content is returned untouched. Partial application is never
// surfaced.
package patchapply

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/waigani/diffparser"
)

// ErrPatchApplication marks a patch that parsed but could not be applied
// cleanly. Callers use it to trigger the full-regeneration fallback.
var ErrPatchApplication = errors.New("patch application failed")

// ErrMalformedPatch marks patch text that is not a unified diff at all.
var ErrMalformedPatch = errors.New("malformed patch")

// DefaultFuzz is the default context-match tolerance. 0 demands exact
// context; 1 accepts any location.
const DefaultFuzz = 0.25

// Applier applies unified patches with a fixed fuzz tolerance.
type Applier struct {
	fuzz float64
}

// New returns an Applier. Fuzz outside [0,1] is clamped.
func New(fuzz float64) *Applier {
	if fuzz < 0 {
		fuzz = 0
	}
	if fuzz > 1 {
		fuzz = 1
	}
	return &Applier{fuzz: fuzz}
}

// Apply applies patchText to current and returns the patched content.
// On any failure the returned content equals current.
func (a *Applier) Apply(patchText, current string) (string, error) {
	hunks, err := parseHunks(patchText)
	if err != nil {
		return current, err
	}

	dmp := diffmatchpatch.New()
	dmp.MatchThreshold = a.fuzz
	// Location drift is expected when the model's line numbers are stale;
	// only context similarity should decide whether a hunk applies.
	dmp.MatchDistance = len(current) + len(patchText)

	result := current
	for i, h := range hunks {
		patches := dmp.PatchMake(h.before, h.after)
		applied, oks := dmp.PatchApply(patches, result)
		for _, ok := range oks {
			if !ok {
				return current, fmt.Errorf("%w: hunk %d context not found within tolerance %.2f", ErrPatchApplication, i+1, a.fuzz)
			}
		}
		result = applied
	}
	return result, nil
}

// hunkText is one hunk reduced to its before and after fragments.
type hunkText struct {
	before string
	after  string
}

// parseHunks validates the patch as a unified diff and extracts each
// hunk's original and replacement fragments.
func parseHunks(patchText string) ([]hunkText, error) {
	if strings.TrimSpace(patchText) == "" {
		return nil, fmt.Errorf("%w: empty patch text", ErrMalformedPatch)
	}
	if !strings.Contains(patchText, "@@") {
		return nil, fmt.Errorf("%w: no hunk headers", ErrMalformedPatch)
	}
	// Models sometimes emit bare hunks without the ---/+++ preamble; give
	// the parser a header to hang them on.
	if !hasFileHeader(patchText) {
		patchText = "--- a/file\n+++ b/file\n" + patchText
	}
	if !strings.HasPrefix(patchText, "diff ") && !strings.Contains(patchText, "\ndiff ") {
		patchText = "diff --git a/file b/file\n" + patchText
	}

	parsed, err := diffparser.Parse(patchText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
	}

	var hunks []hunkText
	for _, df := range parsed.Files {
		for _, hunk := range df.Hunks {
			var before, after strings.Builder
			for _, line := range hunk.WholeRange.Lines {
				switch line.Mode {
				case diffparser.REMOVED:
					writeLine(&before, line.Content)
				case diffparser.ADDED:
					writeLine(&after, line.Content)
				default:
					writeLine(&before, line.Content)
					writeLine(&after, line.Content)
				}
			}
			// A hunk with no context or removed lines has no anchor: it
			// would apply at offset zero wherever the insertion belongs.
			if strings.TrimSpace(before.String()) == "" {
				return nil, fmt.Errorf("%w: hunk %d has no context lines to anchor it", ErrMalformedPatch, len(hunks)+1)
			}
			hunks = append(hunks, hunkText{before: before.String(), after: after.String()})
		}
	}
	if len(hunks) == 0 {
		return nil, fmt.Errorf("%w: no applicable hunks", ErrMalformedPatch)
	}
	return hunks, nil
}

func hasFileHeader(patchText string) bool {
	for _, line := range strings.Split(patchText, "\n") {
		if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") || strings.HasPrefix(line, "diff ") {
			return true
		}
		if strings.HasPrefix(line, "@@ ") {
			return false
		}
	}
	return false
}

func writeLine(sb *strings.Builder, content string) {
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(content)
}

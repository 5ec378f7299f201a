/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package impact maps a parsed proto change set onto the SDK source and
// test files that must be regenerated, using the per-language convention
// table. Mapping is a pure function of the change set, the language, and
// the repository listing, and its output ordering is deterministic.
package impact

import (
	"path"
	"slices"
	"sort"
	"strings"

	"chainguard.dev/protodrift/protodiff"
	"chainguard.dev/protodrift/sdklang"
)

// AffectedFile is one SDK file flagged by the change set.
type AffectedFile struct {
	// Path is relative to the SDK repository root.
	Path string

	// IsTest distinguishes test files from implementation files.
	IsTest bool

	// Exists reports whether the file is present in the repository
	// listing. Missing files are proposed for creation (new components).
	Exists bool

	// Elements is the subset of changes responsible for flagging this
	// file, in change-set order.
	Elements []protodiff.ElementChange

	// ProtoPaths are the proto files whose changes flagged this file, in
	// change-set order without duplicates. Components shared across proto
	// packages make this more than one entry.
	ProtoPaths []string
}

// Warning records a change that mapped to no SDK file. Unmapped changes
// never abort the run; they surface for manual follow-up.
type Warning struct {
	ProtoPath string
	Element   protodiff.ElementChange
	Reason    string
}

// Mapping is the mapper's output: affected files in processing order
// (source before test, lexical within each group) plus warnings.
type Mapping struct {
	Files    []AffectedFile
	Warnings []Warning
}

// Map resolves the change set against one SDK repository.
func Map(cs *protodiff.ChangeSet, lang sdklang.Language, rootListing []string) (*Mapping, error) {
	conv, err := sdklang.ConventionFor(lang)
	if err != nil {
		return nil, err
	}

	listing := make(map[string]bool, len(rootListing))
	for _, p := range rootListing {
		listing[path.Clean(p)] = true
	}

	m := &Mapping{}
	byPath := make(map[string]*AffectedFile)

	add := func(p string, isTest bool, exists bool, protoPath string, ec protodiff.ElementChange) {
		af, ok := byPath[p]
		if !ok {
			af = &AffectedFile{Path: p, IsTest: isTest, Exists: exists}
			byPath[p] = af
		}
		if !slices.Contains(af.ProtoPaths, protoPath) {
			af.ProtoPaths = append(af.ProtoPaths, protoPath)
		}
		af.Elements = append(af.Elements, ec)
	}

	for _, fc := range cs.Files() {
		component := componentName(fc.Path)
		base := conv.FileCase(component)

		sources := existingCandidates(sourceCandidates(conv, base), listing)
		tests := existingCandidates(testCandidates(conv, base), listing)

		for _, ec := range fc.Elements {
			mapped := false
			for _, p := range sources {
				add(p, false, true, fc.Path, ec)
				mapped = true
			}
			for _, p := range tests {
				add(p, true, true, fc.Path, ec)
				mapped = true
			}

			// A brand-new service has no files yet: propose the primary
			// source and test candidates for creation.
			if !mapped && ec.Kind == protodiff.KindService && ec.Op == protodiff.OpAdded {
				src := sourceCandidates(conv, base)[0]
				tst := testCandidates(conv, base)[0]
				add(src, false, false, fc.Path, ec)
				add(tst, true, false, fc.Path, ec)
				mapped = true
			}

			if !mapped {
				m.Warnings = append(m.Warnings, Warning{
					ProtoPath: fc.Path,
					Element:   ec,
					Reason:    "no SDK file matches the " + string(lang) + " conventions for this change",
				})
			}
		}
	}

	for _, af := range byPath {
		m.Files = append(m.Files, *af)
	}
	sort.Slice(m.Files, func(i, j int) bool {
		a, b := m.Files[i], m.Files[j]
		if a.IsTest != b.IsTest {
			return !a.IsTest
		}
		return a.Path < b.Path
	})
	return m, nil
}

// componentName derives the SDK component identifier from a proto path:
// the proto file's base name without its extension.
func componentName(protoPath string) string {
	base := path.Base(protoPath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// sourceCandidates lists the implementation paths a component may live
// at, most specific first. Languages that give each component its own
// directory keep the client stub alongside it.
func sourceCandidates(conv sdklang.Convention, base string) []string {
	return []string{
		path.Join(conv.SourceDir, base+conv.SourceExt),
		path.Join(conv.SourceDir, base, "client"+conv.SourceExt),
		path.Join(conv.SourceDir, base, base+conv.SourceExt),
	}
}

// testCandidates lists the test-file paths for a component under the
// language's prefix or suffix naming rule.
func testCandidates(conv sdklang.Convention, base string) []string {
	var out []string
	if conv.TestPrefix != "" {
		out = append(out, path.Join(conv.TestDir, conv.TestPrefix+base+conv.SourceExt))
	}
	if conv.TestSuffix != "" {
		out = append(out, path.Join(conv.TestDir, base+conv.TestSuffix+conv.SourceExt))
	}
	return out
}

// existingCandidates filters candidates to those present in the listing.
func existingCandidates(candidates []string, listing map[string]bool) []string {
	var out []string
	for _, c := range candidates {
		if listing[c] {
			out = append(out, c)
		}
	}
	return out
}

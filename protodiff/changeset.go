/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package protodiff

import "slices"

// ElementKind identifies the protobuf construct a change touches.
type ElementKind string

const (
	KindMessage   ElementKind = "message"
	KindField     ElementKind = "field"
	KindService   ElementKind = "service"
	KindMethod    ElementKind = "method"
	KindEnum      ElementKind = "enum"
	KindEnumValue ElementKind = "enum_value"
)

// ChangeOp is the operation a diff performed on an element.
type ChangeOp string

const (
	OpAdded    ChangeOp = "added"
	OpRemoved  ChangeOp = "removed"
	OpModified ChangeOp = "modified"
	OpRenamed  ChangeOp = "renamed"
)

// ElementChange is a single element-level change within one proto file.
type ElementChange struct {
	// Kind is the protobuf construct that changed.
	Kind ElementKind

	// Op is what happened to it.
	Op ChangeOp

	// Name is the element's identifier. For renames this is the new name;
	// OldName carries the previous one.
	Name    string
	OldName string

	// Enclosing is the name of the nearest enclosing declaration
	// (message, service, or enum), or empty for top-level elements.
	Enclosing string

	// OldSignature and NewSignature hold the trimmed declaration text on
	// each side of the change. Additions have no OldSignature; removals
	// have no NewSignature.
	OldSignature string
	NewSignature string
}

// FileChange groups the element changes attributed to one proto file,
// along with the raw diff fragment (file header plus hunks) for that file.
type FileChange struct {
	Path     string
	Fragment string
	Elements []ElementChange
}

// ChangeSet is the parsed form of a proto diff. It is immutable once
// returned by Analyze; accessors hand out copies.
type ChangeSet struct {
	files []FileChange
}

// Empty reports whether the diff contained no element changes at all.
// An empty change set means "nothing to do", not a failure.
func (cs *ChangeSet) Empty() bool {
	return cs == nil || len(cs.files) == 0
}

// Files returns the per-file changes in diff order.
func (cs *ChangeSet) Files() []FileChange {
	if cs == nil {
		return nil
	}
	out := make([]FileChange, len(cs.files))
	for i, fc := range cs.files {
		out[i] = FileChange{
			Path:     fc.Path,
			Fragment: fc.Fragment,
			Elements: slices.Clone(fc.Elements),
		}
	}
	return out
}

// Elements returns every element change across all files, in diff order.
func (cs *ChangeSet) Elements() []ElementChange {
	if cs == nil {
		return nil
	}
	var out []ElementChange
	for _, fc := range cs.files {
		out = append(out, fc.Elements...)
	}
	return out
}

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package protodiff

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/waigani/diffparser"
)

// ErrMalformedDiff is returned when the input text cannot be interpreted
// as a unified diff, for example when a hunk appears before any file
// header. It is fatal for the whole run: no impact mapping is possible.
var ErrMalformedDiff = errors.New("malformed proto diff")

var (
	reMessage   = regexp.MustCompile(`^message\s+([A-Za-z_]\w*)\s*\{?`)
	reService   = regexp.MustCompile(`^service\s+([A-Za-z_]\w*)\s*\{?`)
	reEnum      = regexp.MustCompile(`^enum\s+([A-Za-z_]\w*)\s*\{?`)
	reMethod    = regexp.MustCompile(`^rpc\s+([A-Za-z_]\w*)\s*(\([^;]*)`)
	reEnumValue = regexp.MustCompile(`^([A-Z][A-Z0-9_]*)\s*=\s*(\d+)\s*;`)
	reField     = regexp.MustCompile(`^(?:repeated\s+|optional\s+|required\s+)?(map\s*<[^>]+>|[\w.]+)\s+([A-Za-z_]\w*)\s*=\s*(\d+)`)
)

// Analyze parses unified-diff text scoped to protobuf definitions into a
// ChangeSet. Empty input yields an empty change set, never an error.
//
// Attribution policy: each changed line is attributed to the nearest
// enclosing declaration visible within its hunk, found by scanning the
// hunk's lines (context and changed alike) with brace-depth accounting.
// When a hunk begins mid-block and no declaration is visible, the line is
// attributed at file level with no enclosing scope. Ties between an
// enclosing message and a declaration nested inside it resolve to the
// innermost open declaration.
func Analyze(diffText string) (*ChangeSet, error) {
	if strings.TrimSpace(diffText) == "" {
		return &ChangeSet{}, nil
	}

	if err := preflight(diffText); err != nil {
		return nil, err
	}
	diffText = ensureDiffHeaders(diffText)

	parsed, err := diffparser.Parse(diffText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDiff, err)
	}
	if len(parsed.Files) == 0 {
		return nil, fmt.Errorf("%w: no file headers found", ErrMalformedDiff)
	}

	headings := hunkHeadings(diffText)

	cs := &ChangeSet{}
	for fi, df := range parsed.Files {
		path := df.NewName
		if path == "" {
			path = df.OrigName
		}
		var fileHeadings []string
		if fi < len(headings) {
			fileHeadings = headings[fi]
		}
		fc := FileChange{
			Path:     path,
			Fragment: fileFragment(df, fileHeadings),
		}
		var records []lineRecord
		for hi, hunk := range df.Hunks {
			heading := ""
			if hi < len(fileHeadings) {
				heading = fileHeadings[hi]
			}
			records = append(records, classifyHunk(hunk, heading)...)
		}
		fc.Elements = pairRecords(records)
		if len(fc.Elements) > 0 || len(df.Hunks) > 0 {
			cs.files = append(cs.files, fc)
		}
	}
	return cs, nil
}

// hunkHeadings collects the section heading git appends to each hunk
// header (the text after the closing @@), grouped by file in diff order.
// Git fills this with the enclosing declaration, which is exactly the
// backward-scan context a hunk that begins mid-block is otherwise missing.
func hunkHeadings(diffText string) [][]string {
	var out [][]string
	fileIdx := -1
	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "diff "):
			out = append(out, nil)
			fileIdx++
		case strings.HasPrefix(line, "@@ "):
			if fileIdx < 0 {
				out = append(out, nil)
				fileIdx = 0
			}
			heading := ""
			rest := line[3:]
			if i := strings.Index(rest, "@@"); i >= 0 {
				heading = strings.TrimSpace(rest[i+2:])
			}
			out[fileIdx] = append(out[fileIdx], heading)
		}
	}
	return out
}

// ensureDiffHeaders inserts the git per-file header before bare ---/+++
// pairs. Both the parser and the heading grouping key file boundaries on
// diff lines, so a multi-file diff without them would collapse into one
// file section.
func ensureDiffHeaders(diffText string) string {
	lines := strings.Split(diffText, "\n")
	out := make([]string, 0, len(lines))
	inHeader := false
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "diff "):
			inHeader = true
		case strings.HasPrefix(line, "--- "):
			if !inHeader {
				name := strings.TrimPrefix(strings.TrimPrefix(line, "--- "), "a/")
				if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ") && !strings.HasSuffix(lines[i+1], "/dev/null") {
					name = strings.TrimPrefix(strings.TrimPrefix(lines[i+1], "+++ "), "b/")
				}
				out = append(out, "diff --git a/"+name+" b/"+name)
				inHeader = true
			}
		case strings.HasPrefix(line, "@@ "):
			inHeader = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// preflight rejects hunk bodies that precede any file header, which the
// underlying parser does not diagnose.
func preflight(diffText string) error {
	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "diff "),
			strings.HasPrefix(line, "--- "),
			strings.HasPrefix(line, "+++ "):
			return nil
		case strings.HasPrefix(line, "@@ "):
			return fmt.Errorf("%w: hunk without a file header", ErrMalformedDiff)
		}
	}
	return fmt.Errorf("%w: no file headers found", ErrMalformedDiff)
}

// fileFragment reconstructs the diff text for one file so that downstream
// prompt construction can embed only the relevant portion of the diff.
func fileFragment(df *diffparser.DiffFile, headings []string) string {
	var sb strings.Builder
	sb.WriteString(df.DiffHeader)
	for hi, hunk := range df.Hunks {
		fmt.Fprintf(&sb, "\n@@ -%d,%d +%d,%d @@",
			hunk.OrigRange.Start, hunk.OrigRange.Length,
			hunk.NewRange.Start, hunk.NewRange.Length)
		if hi < len(headings) && headings[hi] != "" {
			sb.WriteString(" " + headings[hi])
		}
		for _, line := range hunk.WholeRange.Lines {
			sb.WriteString("\n")
			switch line.Mode {
			case diffparser.ADDED:
				sb.WriteString("+")
			case diffparser.REMOVED:
				sb.WriteString("-")
			default:
				sb.WriteString(" ")
			}
			sb.WriteString(line.Content)
		}
	}
	return sb.String()
}

// lineRecord is the per-line classification before pairing removals with
// additions into element operations.
type lineRecord struct {
	removed   bool
	kind      ElementKind
	name      string
	tag       string // field number or enum value number, for rename pairing
	enclosing string
	signature string
	// implied marks records synthesized for non-declaration lines inside a
	// block: they mean "the enclosing declaration was touched", and always
	// pair down to a modification.
	implied bool
}

// declFrame tracks one open declaration while scanning a hunk.
type declFrame struct {
	kind ElementKind
	name string
}

// classifyHunk walks a hunk's lines in order, tracking open declarations
// by brace depth, and emits a record for every changed line it can
// attribute to a protobuf element.
func classifyHunk(hunk *diffparser.DiffHunk, heading string) []lineRecord {
	var records []lineRecord
	var stack []declFrame
	// Depth of braces opened by lines that are not declarations we track
	// (oneof, nested option blocks). These must not pop tracked frames.
	var anonDepth int

	// The hunk heading names the declaration the hunk begins inside.
	if heading != "" {
		if kind, name, _, decl := classifyLine(strings.TrimSpace(heading), nil); decl {
			stack = append(stack, declFrame{kind: kind, name: name})
		}
	}

	innermost := func() (declFrame, bool) {
		if len(stack) == 0 {
			return declFrame{}, false
		}
		return stack[len(stack)-1], true
	}

	for _, line := range hunk.WholeRange.Lines {
		content := strings.TrimSpace(line.Content)
		changed := line.Mode == diffparser.ADDED || line.Mode == diffparser.REMOVED
		removed := line.Mode == diffparser.REMOVED

		kind, name, tag, decl := classifyLine(content, stack)

		if changed && kind != "" {
			enc, _ := innermost()
			records = append(records, lineRecord{
				removed:   removed,
				kind:      kind,
				name:      name,
				tag:       tag,
				enclosing: enc.name,
				signature: content,
			})
		} else if changed && content != "" && content != "}" && content != "{" {
			// A changed line that is not itself a declaration still marks
			// its nearest enclosing declaration as modified.
			if enc, ok := innermost(); ok {
				records = append(records, lineRecord{
					removed:   removed,
					kind:      enc.kind,
					name:      enc.name,
					enclosing: enclosingName(stack),
					signature: content,
					implied:   true,
				})
			}
		}

		// Scope bookkeeping happens after attribution so a declaration
		// line is attributed to its parent, not to itself.
		opens := strings.Count(line.Content, "{")
		closes := strings.Count(line.Content, "}")
		if decl && opens > 0 {
			stack = append(stack, declFrame{kind: kind, name: name})
			opens--
		}
		anonDepth += opens
		for closes > 0 {
			if anonDepth > 0 {
				anonDepth--
			} else if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			closes--
		}
	}
	return records
}

// classifyLine identifies the protobuf construct a line declares, if any.
// The declaration grammar is scope sensitive: bare NAME = N lines are enum
// values only inside an enum body.
func classifyLine(content string, stack []declFrame) (kind ElementKind, name, tag string, decl bool) {
	if m := reMessage.FindStringSubmatch(content); m != nil {
		return KindMessage, m[1], "", true
	}
	if m := reService.FindStringSubmatch(content); m != nil {
		return KindService, m[1], "", true
	}
	if m := reEnum.FindStringSubmatch(content); m != nil {
		return KindEnum, m[1], "", true
	}
	if m := reMethod.FindStringSubmatch(content); m != nil {
		return KindMethod, m[1], strings.TrimSpace(m[2]), false
	}
	if len(stack) > 0 && stack[len(stack)-1].kind == KindEnum {
		if m := reEnumValue.FindStringSubmatch(content); m != nil {
			return KindEnumValue, m[1], m[2], false
		}
		return "", "", "", false
	}
	if m := reField.FindStringSubmatch(content); m != nil {
		return KindField, m[2], m[3], false
	}
	return "", "", "", false
}

// enclosingName returns the parent scope of the innermost frame.
func enclosingName(stack []declFrame) string {
	if len(stack) < 2 {
		return ""
	}
	return stack[len(stack)-2].name
}

// pairRecords merges per-line records into element operations. A removed
// and an added record for the same element become a modification; a
// removed and an added field or enum value sharing a number become a
// rename; methods sharing a signature become a rename. Leftovers stay as
// plain additions or removals. First-seen order is preserved so repeated
// analysis of identical text yields identical change sets.
func pairRecords(records []lineRecord) []ElementChange {
	used := make([]bool, len(records))
	var out []ElementChange

	seen := make(map[string]int) // dedup index for emitted changes

	emit := func(ec ElementChange) {
		k := string(ec.Kind) + "\x00" + ec.Enclosing + "\x00" + ec.Name + "\x00" + string(ec.Op)
		if i, ok := seen[k]; ok {
			// Merge repeated sightings of the same element change.
			if out[i].OldSignature == "" {
				out[i].OldSignature = ec.OldSignature
			}
			if out[i].NewSignature == "" {
				out[i].NewSignature = ec.NewSignature
			}
			return
		}
		seen[k] = len(out)
		out = append(out, ec)
	}

	// Elements whose own declaration line changed; implied records for
	// these are redundant.
	direct := make(map[string]bool)
	for _, rec := range records {
		if !rec.implied {
			direct[string(rec.kind)+"\x00"+rec.enclosing+"\x00"+rec.name] = true
		}
	}

	for i, rec := range records {
		if used[i] {
			continue
		}
		if rec.implied {
			used[i] = true
			if direct[string(rec.kind)+"\x00"+rec.enclosing+"\x00"+rec.name] {
				continue
			}
			emit(ElementChange{
				Kind: rec.kind, Op: OpModified, Name: rec.name,
				Enclosing:    rec.enclosing,
				OldSignature: signatureIf(rec.removed, rec.signature),
				NewSignature: signatureIf(!rec.removed, rec.signature),
			})
			continue
		}
		if !rec.removed {
			// Look backward and forward for a removal of the same element.
			if j := findMatch(records, used, i, func(o lineRecord) bool {
				return o.removed && !o.implied && o.kind == rec.kind && o.enclosing == rec.enclosing && o.name == rec.name
			}); j >= 0 {
				used[i], used[j] = true, true
				emit(ElementChange{
					Kind: rec.kind, Op: OpModified, Name: rec.name,
					Enclosing:    rec.enclosing,
					OldSignature: records[j].signature,
					NewSignature: rec.signature,
				})
				continue
			}
		}
		used[i] = true
		op := OpAdded
		if rec.removed {
			op = OpRemoved
		}
		emit(ElementChange{
			Kind: rec.kind, Op: op, Name: rec.name,
			Enclosing:    rec.enclosing,
			OldSignature: signatureIf(rec.removed, rec.signature),
			NewSignature: signatureIf(!rec.removed, rec.signature),
		})
	}

	// Second pass: collapse removed+added pairs with matching numbers or
	// method signatures into renames.
	return collapseRenames(out, records)
}

// findMatch returns the index of the first unused record satisfying pred.
func findMatch(records []lineRecord, used []bool, self int, pred func(lineRecord) bool) int {
	for j, o := range records {
		if j == self || used[j] {
			continue
		}
		if pred(o) {
			return j
		}
	}
	return -1
}

// collapseRenames rewrites an (added, removed) pair of fields or enum
// values that share a number, or methods that share a signature, into a
// single renamed change.
func collapseRenames(changes []ElementChange, records []lineRecord) []ElementChange {
	tagOf := func(ec ElementChange) string {
		for _, rec := range records {
			if rec.kind == ec.Kind && rec.name == ec.Name && rec.enclosing == ec.Enclosing {
				return rec.tag
			}
		}
		return ""
	}

	var out []ElementChange
	dropped := make([]bool, len(changes))
	for i, ec := range changes {
		if dropped[i] {
			continue
		}
		if ec.Op == OpRemoved && renameableKind(ec.Kind) {
			oldTag := tagOf(ec)
			for j := range changes {
				other := changes[j]
				if dropped[j] || j == i || other.Op != OpAdded ||
					other.Kind != ec.Kind || other.Enclosing != ec.Enclosing {
					continue
				}
				if oldTag != "" && tagOf(other) == oldTag && other.Name != ec.Name {
					dropped[i], dropped[j] = true, true
					out = append(out, ElementChange{
						Kind: ec.Kind, Op: OpRenamed,
						Name: other.Name, OldName: ec.Name,
						Enclosing:    ec.Enclosing,
						OldSignature: ec.OldSignature,
						NewSignature: other.NewSignature,
					})
					break
				}
			}
			if dropped[i] {
				continue
			}
		}
		dropped[i] = true
		out = append(out, ec)
	}
	return out
}

// renameableKind reports whether rename detection by number or signature
// applies to the kind.
func renameableKind(k ElementKind) bool {
	switch k {
	case KindField, KindEnumValue, KindMethod:
		return true
	}
	return false
}

// signatureIf returns sig when cond holds, else empty.
func signatureIf(cond bool, sig string) string {
	if cond {
		return sig
	}
	return ""
}

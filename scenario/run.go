/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"chainguard.dev/protodrift/generation"
	"chainguard.dev/protodrift/pipeline"
	"chainguard.dev/protodrift/worktree"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-cmp/cmp"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// DiscrepancyKind classifies one expected-versus-actual mismatch.
type DiscrepancyKind string

const (
	// Missing means the expected snapshot has the file and the run's
	// result does not.
	Missing DiscrepancyKind = "missing"

	// Extra means the run produced a file the expected snapshot lacks.
	Extra DiscrepancyKind = "extra"

	// ContentDiff means the file exists on both sides with different
	// contents.
	ContentDiff DiscrepancyKind = "content-diff"
)

// Discrepancy is one file-level mismatch in a failed scenario.
type Discrepancy struct {
	Path string
	Kind DiscrepancyKind

	// Diff is a unified rendering of the mismatch for ContentDiff.
	Diff string
}

// Outcome is one scenario's result.
type Outcome struct {
	Name   string
	Passed bool

	// Err is set when the pipeline itself failed; comparison mismatches
	// are reported through Discrepancies instead.
	Err error

	// Report is the pipeline run report, nil when the run aborted.
	Report *pipeline.Report

	Discrepancies []Discrepancy
}

// Runner replays scenarios through the pipeline. Each scenario gets a
// fresh in-memory working tree, so no state survives between runs.
type Runner struct {
	// gen serves scenarios without canned responses; may be nil when
	// every scenario carries its own stub config.
	gen generation.Generator
}

// NewRunner returns a Runner. The generator is the default collaborator
// for scenarios that do not stub their responses; pass nil when all
// scenarios are stubbed.
func NewRunner(gen generation.Generator) *Runner {
	return &Runner{gen: gen}
}

// Run replays one scenario and judges the result under its compare
// mode.
func (r *Runner) Run(ctx context.Context, s *Scenario) Outcome {
	log := clog.FromContext(ctx).With("scenario", s.Name)
	outcome := Outcome{Name: s.Name}

	gen := r.gen
	if s.Stub != nil {
		unavailable := make(map[string]bool, len(s.Stub.Unavailable))
		for _, p := range s.Stub.Unavailable {
			unavailable[p] = true
		}
		gen = &generation.Stub{
			Patches:     s.Stub.Patches,
			Files:       s.Stub.Files,
			Unavailable: unavailable,
		}
	}
	if gen == nil {
		outcome.Err = errors.New("scenario has no stub config and the runner has no default generator")
		return outcome
	}

	tree := worktree.NewMem(s.Snapshot)
	p, err := pipeline.New(gen, tree, pipeline.Config{
		Language:    s.Language,
		PreferPatch: s.PreferPatch,
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}

	report, err := p.Run(ctx, s.DiffText)
	if err != nil {
		outcome.Err = fmt.Errorf("pipeline run: %w", err)
		return outcome
	}
	outcome.Report = report

	if s.Compare == CompareSkip {
		log.Info("Comparison skipped by scenario config")
		outcome.Passed = true
		return outcome
	}

	outcome.Discrepancies = compare(s.Expected, tree.Snapshot())
	outcome.Passed = len(outcome.Discrepancies) == 0
	return outcome
}

// RunAll replays every scenario independently and returns outcomes in
// input order.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) []Outcome {
	outcomes := make([]Outcome, 0, len(scenarios))
	for _, s := range scenarios {
		outcomes = append(outcomes, r.Run(ctx, s))
	}
	return outcomes
}

// compare diffs the expected snapshot against the actual one, file by
// file, in lexical path order.
func compare(expected, actual map[string]string) []Discrepancy {
	paths := make(map[string]struct{}, len(expected)+len(actual))
	for p := range expected {
		paths[p] = struct{}{}
	}
	for p := range actual {
		paths[p] = struct{}{}
	}
	ordered := make([]string, 0, len(paths))
	for p := range paths {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	var out []Discrepancy
	for _, p := range ordered {
		want, inExpected := expected[p]
		got, inActual := actual[p]
		switch {
		case !inActual:
			out = append(out, Discrepancy{Path: p, Kind: Missing})
		case !inExpected:
			out = append(out, Discrepancy{Path: p, Kind: Extra})
		case want != got:
			out = append(out, Discrepancy{Path: p, Kind: ContentDiff, Diff: cmp.Diff(want, got)})
		}
	}
	return out
}

// WriteReport renders outcomes as a Markdown table, one row per
// scenario, followed by discrepancy details for failures.
func WriteReport(w io.Writer, outcomes []Outcome) error {
	table := newScenarioTable([]string{"Scenario", "Result", "Detail"}, w)
	for _, o := range outcomes {
		result := "pass"
		detail := ""
		switch {
		case o.Err != nil:
			result = "error"
			detail = o.Err.Error()
		case !o.Passed:
			result = "fail"
			detail = fmt.Sprintf("%d file mismatches", len(o.Discrepancies))
		}
		_ = table.Append([]string{o.Name, result, detail})
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, o := range outcomes {
		if o.Passed || len(o.Discrepancies) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "\nScenario %s:\n", o.Name); err != nil {
			return err
		}
		for _, d := range o.Discrepancies {
			if _, err := fmt.Fprintf(w, "  %s: %s\n", d.Kind, d.Path); err != nil {
				return err
			}
			if d.Diff != "" {
				if _, err := fmt.Fprintf(w, "%s\n", d.Diff); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func newScenarioTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

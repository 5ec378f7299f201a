/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"fmt"
	"io"
	"strconv"

	"chainguard.dev/protodrift/generation"
	"chainguard.dev/protodrift/impact"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Status is a file's final disposition in the run report.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// ReasonPatchAndFallbackFailed marks files whose patch attempt and full
// regeneration fallback both failed. The file is left untouched.
const ReasonPatchAndFallbackFailed = "patch_and_fallback_failed"

// FileOutcome is one file's row in the run report.
type FileOutcome struct {
	Path string

	Status Status

	// Mode is the mode that produced the final content, or the mode in
	// flight when the file was skipped or failed.
	Mode generation.Mode

	// FellBack reports that the patch attempt failed and full
	// regeneration ran.
	FellBack bool

	// Reason is set for skipped and failed files.
	Reason string
}

// Report is the per-run status report. Partial success is the steady
// state; callers inspect Counts rather than treating any failed file as
// a run failure.
type Report struct {
	// Files is in deterministic processing order: source before test,
	// lexical within each group.
	Files []FileOutcome

	// Warnings are changes that mapped to no SDK file.
	Warnings []impact.Warning

	// PromptTokens and CompletionTokens total the run's collaborator
	// usage across all calls, including failed patch attempts.
	PromptTokens     int64
	CompletionTokens int64

	// EstimatedCost is the run's estimated spend in USD, zero when every
	// call was stubbed or the model has no known rate.
	EstimatedCost float64
}

// Counts tallies files by status.
func (r *Report) Counts() (succeeded, skipped, failed int) {
	for _, f := range r.Files {
		switch f.Status {
		case StatusSucceeded:
			succeeded++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return
}

// Write renders the report as a Markdown table.
func (r *Report) Write(w io.Writer) error {
	table := newReportTable([]string{"File", "Status", "Mode", "Fallback", "Reason"}, w)
	for _, f := range r.Files {
		_ = table.Append([]string{f.Path, string(f.Status), string(f.Mode), strconv.FormatBool(f.FellBack), f.Reason})
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(r.Warnings) > 0 {
		if _, err := io.WriteString(w, "\nUnmapped changes:\n"); err != nil {
			return err
		}
		warnings := newReportTable([]string{"Proto", "Element", "Reason"}, w)
		for _, warn := range r.Warnings {
			_ = warnings.Append([]string{warn.ProtoPath, warn.Element.Name, warn.Reason})
		}
		if err := warnings.Render(); err != nil {
			return err
		}
	}

	if r.PromptTokens > 0 || r.CompletionTokens > 0 {
		if _, err := fmt.Fprintf(w, "\nTokens: %d prompt, %d completion. Estimated cost: $%.4f\n",
			r.PromptTokens, r.CompletionTokens, r.EstimatedCost); err != nil {
			return err
		}
	}
	return nil
}

// newReportTable builds a table writer with the markdown rendition used
// for all run reports.
func newReportTable(headers []string, w io.Writer) *tablewriter.Table {
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

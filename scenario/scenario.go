/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package scenario is the regression harness for the propagation
// pipeline. A scenario pairs a recorded proto diff and starting SDK
// snapshot with the known-correct resulting snapshot; the harness
// replays each one through the real pipeline, usually with canned
// collaborator responses, and compares outcomes file by file.
package scenario

import (
	"chainguard.dev/protodrift/sdklang"
)

// CompareMode selects how a scenario's outcome is judged.
type CompareMode string

const (
	// CompareExact requires byte equality against the expected
	// snapshot.
	CompareExact CompareMode = "exact"

	// CompareSkip skips the snapshot comparison. The scenario still
	// fails if the pipeline itself errors. Used for quick
	// generation-only debugging runs.
	CompareSkip CompareMode = "skip"
)

// StubConfig is the canned collaborator response set for one scenario.
// Keys are SDK file paths; values are response contents. A scenario with
// no stub config runs against the harness's default generator.
type StubConfig struct {
	// Patches are patch-mode responses.
	Patches map[string]string

	// Files are full-mode responses.
	Files map[string]string

	// Unavailable lists paths whose generation calls simulate a
	// collaborator outage.
	Unavailable []string
}

// Scenario is one recorded fixture. Fixtures are read-only; runs
// materialize fresh working trees and never write back.
type Scenario struct {
	Name     string
	Language sdklang.Language

	// DiffText is the recorded proto diff fed to the pipeline.
	DiffText string

	// Snapshot is the starting repository state, path to content.
	Snapshot map[string]string

	// Expected is the repository state after a correct run.
	Expected map[string]string

	Compare CompareMode

	// PreferPatch mirrors the pipeline configuration the scenario was
	// recorded under.
	PreferPatch bool

	// Stub holds canned responses, nil to use the default generator.
	Stub *StubConfig
}

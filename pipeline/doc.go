/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pipeline orchestrates one run end to end: parse the proto
// diff, map the impact, generate per-file updates, apply patches with a
// single full-regeneration fallback, and commit results to the working
// tree.
//
// The run degrades per file, never per batch. A file whose collaborator
// call never completes is skipped; a file whose patch and fallback both
// fail is reported failed and left untouched; everything else proceeds.
// Only an unparseable diff or a working-tree I/O failure aborts a run.
package pipeline

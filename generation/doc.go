/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package generation decides, per affected SDK file, whether to request
// a minimal patch or a full rewrite from the AI collaborator, builds the
// request with only that file's slice of the proto diff, and normalizes
// whatever text comes back into a tagged result.
//
// The collaborator itself sits behind the Generator interface: one
// synchronous, fallible call. Everything clever about retries inside a
// provider belongs to the provider subpackages; everything about
// fallback between modes belongs to the pipeline. Substituting the
// deterministic Stub therefore changes no pipeline logic.
package generation

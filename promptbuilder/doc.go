/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package promptbuilder provides compile-time-safe prompt templates for
// the generation pipeline. Templates declare {{name}} placeholders;
// values are bound one at a time and Build fails if any placeholder is
// left unbound, so a prompt can never reach a model half-assembled.
//
// Template text itself is restricted to untyped string literals, which
// keeps request data (file contents, diff fragments) out of the template
// structure: data flows only through bindings.
package promptbuilder

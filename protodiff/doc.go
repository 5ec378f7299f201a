/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package protodiff turns unified-diff text over protobuf definition files
// into a structured, immutable change set. It attributes each changed line
// to the nearest enclosing protobuf declaration so that downstream impact
// mapping can reason about messages, services, and fields instead of raw
// diff lines.
package protodiff

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generation

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Stub is a deterministic Generator for tests and the scenario harness.
// Responses are keyed by file path; a path with no registered response
// for the requested mode comes back unsuccessful, which exercises the
// same fallback paths a malformed model response would.
type Stub struct {
	// Patches maps file paths to canned patch-mode responses.
	Patches map[string]string

	// Files maps file paths to canned full-mode file contents.
	Files map[string]string

	// Unavailable lists paths whose calls fail with ErrUnavailable.
	Unavailable map[string]bool

	mu    sync.Mutex
	calls []Request
}

// Generate replays the canned response for the request's path and mode.
func (s *Stub) Generate(_ context.Context, req Request) (Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if s.Unavailable[req.Path] {
		return Result{}, fmt.Errorf("stubbed outage for %s: %w", req.Path, ErrUnavailable)
	}

	res := Result{Mode: req.Mode}
	switch req.Mode {
	case ModePatch:
		patch, ok := s.Patches[req.Path]
		if !ok {
			res.FailureReason = "no stubbed patch response"
			return res, nil
		}
		res.Text, res.Raw, res.Success = patch, patch, true
	case ModeFull:
		content, ok := s.Files[req.Path]
		if !ok {
			res.FailureReason = "no stubbed file response"
			return res, nil
		}
		res.Text, res.Raw, res.Success = content, content, true
	default:
		res.FailureReason = "unknown generation mode: " + string(req.Mode)
	}
	return res, nil
}

// Calls returns the requests seen so far, in call order.
func (s *Stub) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

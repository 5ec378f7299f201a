/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generation

import (
	"context"
	"errors"
	"strings"

	"chainguard.dev/protodrift/sdklang"
)

// Mode selects what the collaborator is asked to produce for a file.
type Mode string

const (
	// ModePatch requests a minimal unified-diff patch against the
	// file's current contents.
	ModePatch Mode = "patch"

	// ModeFull requests the complete post-change file contents.
	ModeFull Mode = "full"
)

// ErrUnavailable reports that the collaborator could not be reached at
// all: exhausted retries, authentication failure, provider outage. It is
// distinct from a reachable collaborator producing unusable output,
// which comes back as an unsuccessful Result with a nil error.
var ErrUnavailable = errors.New("generation backend unavailable")

// IsUnavailable reports whether err means the collaborator never
// produced a response. Deadline expiry counts: a call that timed out is
// indistinguishable from one that never connected.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

// Request is one generation call for one SDK file.
type Request struct {
	// Mode is patch or full.
	Mode Mode

	// Path is the SDK-relative path of the file being updated.
	Path string

	// Language is the SDK language, used to shape the prompt.
	Language sdklang.Language

	// Content is the file's current contents. Empty for files proposed
	// for creation.
	Content string

	// Fragment is the slice of the proto diff relevant to this file,
	// never the whole diff.
	Fragment string

	// Guidance summarizes the classified element changes behind the
	// fragment, one line per element.
	Guidance string
}

// Result is the normalized outcome of one generation call.
type Result struct {
	// Mode echoes the request mode.
	Mode Mode

	// Text is the usable payload: patch text for ModePatch, complete
	// file contents for ModeFull. Empty when Success is false.
	Text string

	// Raw is the collaborator's verbatim response, kept for debug
	// artifacts.
	Raw string

	// Success reports whether the response parsed into a usable
	// payload.
	Success bool

	// FailureReason names why parsing failed when Success is false.
	FailureReason string

	// Usage is the call's token consumption, zero for stubbed calls.
	Usage Usage
}

// Generator is the AI collaborator: one synchronous call per file. A
// malformed response is a Result with Success false, not an error;
// errors mean the call itself did not complete.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Finalize turns a raw collaborator response into a Result for the
// given request. Provider adapters call this so that response
// normalization is identical across providers.
func Finalize(req Request, raw string) Result {
	res := Result{Mode: req.Mode, Raw: raw}

	switch req.Mode {
	case ModePatch:
		patch := ExtractCode(raw)
		if strings.TrimSpace(patch) == "" {
			res.FailureReason = "empty response"
			return res
		}
		if !strings.Contains(patch, "@@") {
			res.FailureReason = "response contains no patch hunks"
			return res
		}
		res.Text = patch
		res.Success = true

	case ModeFull:
		content, err := extractFileOutput(raw)
		if err != nil {
			res.FailureReason = err.Error()
			return res
		}
		res.Text = content
		res.Success = true

	default:
		res.FailureReason = "unknown generation mode: " + string(req.Mode)
	}
	return res
}

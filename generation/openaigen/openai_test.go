/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaigen

import (
	"fmt"
	"testing"

	"github.com/openai/openai-go"
)

func TestNewOptionValidation(t *testing.T) {
	t.Parallel()
	client := openai.NewClient()

	if _, err := New(client, WithModel("")); err == nil {
		t.Error("empty model accepted")
	}
	g, err := New(client, WithModel("gpt-4.1"), WithMaxTokens(2048))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.model != "gpt-4.1" || g.maxTokens != 2048 {
		t.Errorf("options not applied: model=%q maxTokens=%d", g.model, g.maxTokens)
	}
}

func TestIsRetryableOpenAIError(t *testing.T) {
	t.Parallel()
	for code, want := range map[int]bool{429: true, 500: true, 503: true, 400: false, 404: false} {
		err := fmt.Errorf("call failed: %w", &openai.Error{StatusCode: code})
		if got := isRetryableOpenAIError(err); got != want {
			t.Errorf("status %d: retryable = %v, want %v", code, got, want)
		}
	}
}

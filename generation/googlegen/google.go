/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package googlegen generates file updates with Gemini through the
// Google GenAI SDK. Full-mode requests constrain the response to JSON
// so the envelope parsing has less to clean up.
package googlegen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/protodrift/generation"
	"chainguard.dev/protodrift/generation/retry"
	"chainguard.dev/protodrift/metrics"
	"github.com/chainguard-dev/clog"
	"google.golang.org/genai"
)

const meterName = "chainguard.ai.protodrift"

// Generator calls the Google GenAI API. Create with New.
type Generator struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
	genaiMetrics    *metrics.GenAI
	retryConfig     retry.Config
}

// Option configures a Generator.
type Option func(*Generator) error

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(g *Generator) error {
		if model == "" {
			return errors.New("model cannot be empty")
		}
		g.model = model
		return nil
	}
}

// WithMaxOutputTokens overrides the response token budget.
func WithMaxOutputTokens(n int32) Option {
	return func(g *Generator) error {
		if n <= 0 {
			return errors.New("max output tokens must be positive")
		}
		g.maxOutputTokens = n
		return nil
	}
}

// WithRetryConfig overrides the retry behavior for transient API errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(g *Generator) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
		g.retryConfig = cfg
		return nil
	}
}

// New creates a Generator backed by the given client.
func New(client *genai.Client, opts ...Option) (*Generator, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	g := &Generator{
		client:          client,
		model:           "gemini-2.5-flash",
		temperature:     0.1,
		maxOutputTokens: 16384,
		genaiMetrics:    metrics.NewGenAI(meterName),
		retryConfig:     retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return g, nil
}

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	log := clog.FromContext(ctx)

	prompt, err := generation.BuildPrompt(req)
	if err != nil {
		return generation.Result{}, fmt.Errorf("building prompt: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     ptr(g.temperature),
		MaxOutputTokens: g.maxOutputTokens,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: generation.SystemPrompt}},
		},
	}
	// Patch responses are diff text, which JSON mode would mangle.
	if req.Mode == generation.ModeFull {
		config.ResponseMIMEType = "application/json"
	}

	log.With("path", req.Path).With("mode", req.Mode).
		With("model", g.model).
		Info("Requesting Gemini generation")

	chat, err := g.client.Chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return generation.Result{}, fmt.Errorf("gemini chat for %s: %w", req.Path, errors.Join(generation.ErrUnavailable, err))
	}

	response, err := retry.Do(ctx, g.retryConfig, "generate_"+string(req.Mode), isRetryableVertexError, func() (*genai.GenerateContentResponse, error) {
		return chat.Send(ctx, &genai.Part{Text: prompt})
	})
	if err != nil {
		return generation.Result{}, fmt.Errorf("gemini generation for %s: %w", req.Path, errors.Join(generation.ErrUnavailable, err))
	}

	usage := generation.Usage{Model: g.model}
	if response.UsageMetadata != nil {
		usage.PromptTokens = int64(response.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int64(response.UsageMetadata.CandidatesTokenCount)
		g.genaiMetrics.RecordTokens(ctx, g.model, usage.PromptTokens, usage.CompletionTokens)
	}

	var text strings.Builder
	if len(response.Candidates) > 0 && response.Candidates[0].Content != nil {
		for _, part := range response.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}
	res := generation.Finalize(req, text.String())
	res.Usage = usage
	return res, nil
}

// isRetryableVertexError reports whether an error is a rate limit,
// quota exhaustion, or transient server error worth retrying. The SDK
// does not expose typed errors for these, so this matches strings.
func isRetryableVertexError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Resource exhausted") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "Overloaded") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "server error")
}

func ptr[T any](v T) *T { return &v }

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package anthropicgen generates file updates with Claude. Calls are
// single turn: one prompt in, one text response out, normalized through
// the shared response handling so every provider behaves identically
// downstream.
package anthropicgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/protodrift/generation"
	"chainguard.dev/protodrift/generation/retry"
	"chainguard.dev/protodrift/metrics"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

const meterName = "chainguard.ai.protodrift"

// Generator calls the Anthropic API. Create with New.
type Generator struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	temperature  float64
	genaiMetrics *metrics.GenAI
	retryConfig  retry.Config
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

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int64) Option {
	return func(g *Generator) error {
		if n <= 0 {
			return errors.New("max tokens must be positive")
		}
		g.maxTokens = n
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
func New(client anthropic.Client, opts ...Option) (*Generator, error) {
	g := &Generator{
		client: client,
		model:  "claude-sonnet-4-5",
		// Full rewrites return entire files, so the budget is generous.
		maxTokens:    16384,
		temperature:  0.1,
		genaiMetrics: metrics.NewGenAI(meterName),
		retryConfig:  retry.DefaultConfig(),
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

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: generation.SystemPrompt}},
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(prompt),
			},
		}},
	}
	params.Temperature = anthropic.Float(g.temperature)

	log.With("path", req.Path).With("mode", req.Mode).
		With("prompt_length", len(prompt)).
		Info("Requesting Claude generation")

	message, err := retry.Do(ctx, g.retryConfig, "generate_"+string(req.Mode), isRetryableClaudeError, func() (anthropic.Message, error) {
		stream := g.client.Messages.NewStreaming(ctx, params)
		var msg anthropic.Message
		for stream.Next() {
			if err := msg.Accumulate(stream.Current()); err != nil {
				return msg, fmt.Errorf("failed to accumulate event: %w", err)
			}
		}
		if err := stream.Err(); err != nil {
			return msg, err
		}
		return msg, nil
	})
	if err != nil {
		// The call never completed; the caller decides whether to skip.
		return generation.Result{}, fmt.Errorf("claude generation for %s: %w", req.Path, errors.Join(generation.ErrUnavailable, err))
	}

	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		g.genaiMetrics.RecordTokens(ctx, g.model, message.Usage.InputTokens, message.Usage.OutputTokens)
	}

	var text strings.Builder
	for _, content := range message.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}
	res := generation.Finalize(req, text.String())
	res.Usage = generation.Usage{
		Model:            g.model,
		PromptTokens:     message.Usage.InputTokens,
		CompletionTokens: message.Usage.OutputTokens,
	}
	return res, nil
}

// isRetryableClaudeError reports whether an error is a rate limit,
// overloaded, or transient server error worth retrying.
func isRetryableClaudeError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503, 504, 529:
			return true
		}
	}
	return false
}

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaigen generates file updates through the OpenAI chat
// completions API.
package openaigen

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/protodrift/generation"
	"chainguard.dev/protodrift/generation/retry"
	"chainguard.dev/protodrift/metrics"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
)

const meterName = "chainguard.ai.protodrift"

// Generator calls the OpenAI API. Create with New.
type Generator struct {
	client       openai.Client
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
func New(client openai.Client, opts ...Option) (*Generator, error) {
	g := &Generator{
		client:       client,
		model:        "gpt-4o",
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

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(generation.SystemPrompt),
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(g.maxTokens),
		Temperature:         openai.Float(g.temperature),
	}

	log.With("path", req.Path).With("mode", req.Mode).
		With("model", g.model).
		Info("Requesting OpenAI generation")

	completion, err := retry.Do(ctx, g.retryConfig, "generate_"+string(req.Mode), isRetryableOpenAIError, func() (*openai.ChatCompletion, error) {
		return g.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return generation.Result{}, fmt.Errorf("openai generation for %s: %w", req.Path, errors.Join(generation.ErrUnavailable, err))
	}

	if completion.Usage.PromptTokens > 0 || completion.Usage.CompletionTokens > 0 {
		g.genaiMetrics.RecordTokens(ctx, g.model, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	}

	raw := ""
	if len(completion.Choices) > 0 {
		raw = completion.Choices[0].Message.Content
	}
	res := generation.Finalize(req, raw)
	res.Usage = generation.Usage{
		Model:            g.model,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}
	return res, nil
}

// isRetryableOpenAIError reports whether an error is a rate limit or
// transient server error worth retrying.
func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

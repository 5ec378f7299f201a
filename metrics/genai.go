/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics provides OpenTelemetry counters for the generation
// pipeline: token usage per model and patch-fallback events. Counter
// creation degrades to no-ops rather than failing the pipeline.
package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// GenAI records generation-call metrics. The meter name is unified
// across providers; the model is a dimension on each recording.
type GenAI struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	fallbacks        metric.Int64Counter
}

// NewGenAI creates the counters on the named meter. A counter that fails
// to initialize logs a warning and records nothing.
func NewGenAI(meterName string) *GenAI {
	meter := otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	promptTokens, err := meter.Int64Counter("genai.token.prompt",
		metric.WithDescription("The number of prompt tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create prompt tokens counter, metrics will be disabled", "error", err, "meter", meterName)
		promptTokens = noop.Int64Counter{}
	}

	completionTokens, err := meter.Int64Counter("genai.token.completion",
		metric.WithDescription("The number of completion tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create completion tokens counter, metrics will be disabled", "error", err, "meter", meterName)
		completionTokens = noop.Int64Counter{}
	}

	fallbacks, err := meter.Int64Counter("protodrift.patch.fallbacks",
		metric.WithDescription("The number of patch applications that fell back to full regeneration"),
		metric.WithUnit("{files}"))
	if err != nil {
		slog.Warn("Failed to create fallback counter, metrics will be disabled", "error", err, "meter", meterName)
		fallbacks = noop.Int64Counter{}
	}

	return &GenAI{
		promptTokens:     promptTokens,
		completionTokens: completionTokens,
		fallbacks:        fallbacks,
	}
}

// RecordTokens records prompt and completion token usage for one call.
func (m *GenAI) RecordTokens(ctx context.Context, model string, promptTokens, completionTokens int64) {
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.promptTokens.Add(ctx, promptTokens, attrs)
	m.completionTokens.Add(ctx, completionTokens, attrs)
}

// RecordFallback records one patch-to-full fallback for a file,
// dimensioned by SDK language.
func (m *GenAI) RecordFallback(ctx context.Context, language string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("language", language)))
}

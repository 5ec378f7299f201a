/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generation

import "strings"

// Usage is the token consumption of one generation call, as reported by
// the provider. The stub reports zero usage.
type Usage struct {
	Model            string
	PromptTokens     int64
	CompletionTokens int64
}

// modelPrice is USD per million tokens.
type modelPrice struct {
	prompt     float64
	completion float64
}

// prices holds published per-model rates, keyed by model name prefix so
// dated variants resolve to their family.
var prices = map[string]modelPrice{
	"claude-opus":      {prompt: 15.00, completion: 75.00},
	"claude-sonnet":    {prompt: 3.00, completion: 15.00},
	"claude-haiku":     {prompt: 0.80, completion: 4.00},
	"gemini-2.5-pro":   {prompt: 1.25, completion: 10.00},
	"gemini-2.5-flash": {prompt: 0.30, completion: 2.50},
	"gpt-4o":           {prompt: 2.50, completion: 10.00},
	"gpt-4.1":          {prompt: 2.00, completion: 8.00},
}

// EstimateCost returns the estimated USD cost of the usage, or zero for
// models with no known rate. Estimates are report metadata only; they
// never influence pipeline behavior.
func EstimateCost(u Usage) float64 {
	for prefix, p := range prices {
		if strings.HasPrefix(u.Model, prefix) {
			return float64(u.PromptTokens)/1e6*p.prompt +
				float64(u.CompletionTokens)/1e6*p.completion
		}
	}
	return 0
}

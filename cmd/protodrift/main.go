/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the proto-drift propagation pipeline. In work mode
// it applies a proto diff to a real SDK checkout; in test mode it
// replays the recorded scenario library and reports regressions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"chainguard.dev/protodrift/generation"
	"chainguard.dev/protodrift/generation/anthropicgen"
	"chainguard.dev/protodrift/generation/googlegen"
	"chainguard.dev/protodrift/generation/openaigen"
	"chainguard.dev/protodrift/pipeline"
	"chainguard.dev/protodrift/scenario"
	"chainguard.dev/protodrift/sdklang"
	"chainguard.dev/protodrift/worktree"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	"github.com/sethvargo/go-envconfig"
	"google.golang.org/genai"
)

type config struct {
	// Mode is "work" (real working-tree writes) or "test" (scenario
	// replay).
	Mode string `env:"MODE,default=work"`

	// RepoRoot is the SDK checkout to update in work mode.
	RepoRoot string `env:"REPO_ROOT,default=."`

	// ProtoDiff is the path of the proto diff file, work mode only.
	ProtoDiff string `env:"PROTO_DIFF"`

	// SDKLanguage overrides marker-file detection.
	SDKLanguage string `env:"SDK_LANGUAGE"`

	// ScenarioDir holds the scenario library, test mode only.
	ScenarioDir string `env:"SCENARIO_DIR,default=scenarios"`

	// Provider selects the collaborator: anthropic, google, openai, or
	// stub. Unset, the provider is inferred from the model name prefix,
	// defaulting to anthropic. Credentials come from each SDK's usual
	// environment variables.
	Provider string `env:"PROVIDER"`

	// Model overrides the provider's default model.
	Model string `env:"MODEL"`

	PreferPatch    bool          `env:"PREFER_PATCH,default=true"`
	PatchFuzz      float64       `env:"PATCH_FUZZ,default=0.25"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY,default=1"`
	Timeout        time.Duration `env:"GENERATION_TIMEOUT,default=120s"`

	// DebugArtifacts saves raw responses and rejected patches under
	// .protodrift/ in the repository root.
	DebugArtifacts bool `env:"DEBUG_ARTIFACTS,default=false"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	switch cfg.Mode {
	case "work":
		runWork(ctx, &cfg)
	case "test":
		runTest(ctx, &cfg)
	default:
		clog.FatalContextf(ctx, "unknown MODE %q, want work or test", cfg.Mode)
	}
}

func runWork(ctx context.Context, cfg *config) {
	if cfg.ProtoDiff == "" {
		clog.FatalContextf(ctx, "PROTO_DIFF is required in work mode")
	}
	diff, err := os.ReadFile(cfg.ProtoDiff)
	if err != nil {
		clog.FatalContextf(ctx, "reading proto diff: %v", err)
	}

	tree, err := worktree.NewDir(cfg.RepoRoot)
	if err != nil {
		clog.FatalContextf(ctx, "opening repository: %v", err)
	}

	lang := sdklang.Language(cfg.SDKLanguage)
	if cfg.SDKLanguage == "" {
		listing, err := tree.List(ctx)
		if err != nil {
			clog.FatalContextf(ctx, "listing repository: %v", err)
		}
		if lang, err = sdklang.Detect(listing); err != nil {
			clog.FatalContextf(ctx, "detecting SDK language: %v", err)
		}
		clog.InfoContextf(ctx, "Detected SDK language: %s", lang)
	}

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		clog.FatalContextf(ctx, "creating generator: %v", err)
	}

	opts := []pipeline.Option{}
	if cfg.DebugArtifacts {
		opts = append(opts, pipeline.WithArtifactSink(worktree.NewDirSink(filepath.Join(cfg.RepoRoot, ".protodrift"))))
	}
	p, err := pipeline.New(gen, tree, pipeline.Config{
		Language:       lang,
		PreferPatch:    cfg.PreferPatch,
		PatchFuzz:      cfg.PatchFuzz,
		MaxConcurrency: cfg.MaxConcurrency,
		Timeout:        cfg.Timeout,
	}, opts...)
	if err != nil {
		clog.FatalContextf(ctx, "creating pipeline: %v", err)
	}

	report, err := p.Run(ctx, string(diff))
	if err != nil {
		clog.FatalContextf(ctx, "pipeline run: %v", err)
	}
	if err := report.Write(os.Stdout); err != nil {
		clog.FatalContextf(ctx, "writing report: %v", err)
	}
	// Partial success is the steady state; only a run-level failure is
	// a non-zero exit.
	succeeded, skipped, failed := report.Counts()
	clog.InfoContextf(ctx, "Run complete: %d succeeded, %d skipped, %d failed", succeeded, skipped, failed)
}

func runTest(ctx context.Context, cfg *config) {
	scenarios, err := scenario.LoadDir(cfg.ScenarioDir)
	if err != nil {
		clog.FatalContextf(ctx, "loading scenarios: %v", err)
	}
	if len(scenarios) == 0 {
		clog.FatalContextf(ctx, "no scenarios found under %s", cfg.ScenarioDir)
	}

	// Stubbed scenarios bring their own responses; the default
	// generator only serves scenarios without a stub config.
	var gen generation.Generator
	if cfg.Provider != "stub" {
		if gen, err = newGenerator(ctx, cfg); err != nil {
			clog.FatalContextf(ctx, "creating generator: %v", err)
		}
	}

	outcomes := scenario.NewRunner(gen).RunAll(ctx, scenarios)
	if err := scenario.WriteReport(os.Stdout, outcomes); err != nil {
		clog.FatalContextf(ctx, "writing report: %v", err)
	}

	failed := 0
	for _, o := range outcomes {
		if !o.Passed {
			failed++
		}
	}
	if failed > 0 {
		clog.FatalContextf(ctx, "%d of %d scenarios failed", failed, len(outcomes))
	}
	clog.InfoContextf(ctx, "All %d scenarios passed", len(outcomes))
}

// inferProvider maps a model name to its provider by prefix.
func inferProvider(model string) string {
	switch {
	case strings.HasPrefix(model, "gemini"):
		return "google"
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "openai"
	default:
		return "anthropic"
	}
}

// newGenerator builds the collaborator for the configured provider.
// Each SDK reads its own credentials from the environment.
func newGenerator(ctx context.Context, cfg *config) (generation.Generator, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = inferProvider(cfg.Model)
	}
	switch provider {
	case "anthropic":
		var opts []anthropicgen.Option
		if cfg.Model != "" {
			opts = append(opts, anthropicgen.WithModel(cfg.Model))
		}
		return anthropicgen.New(anthropic.NewClient(), opts...)

	case "google":
		client, err := genai.NewClient(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("creating genai client: %w", err)
		}
		var opts []googlegen.Option
		if cfg.Model != "" {
			opts = append(opts, googlegen.WithModel(cfg.Model))
		}
		return googlegen.New(client, opts...)

	case "openai":
		var opts []openaigen.Option
		if cfg.Model != "" {
			opts = append(opts, openaigen.WithModel(cfg.Model))
		}
		return openaigen.New(openai.NewClient(), opts...)

	case "stub":
		return &generation.Stub{}, nil

	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

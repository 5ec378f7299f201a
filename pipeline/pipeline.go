/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chainguard.dev/protodrift/generation"
	"chainguard.dev/protodrift/impact"
	"chainguard.dev/protodrift/metrics"
	"chainguard.dev/protodrift/patchapply"
	"chainguard.dev/protodrift/protodiff"
	"chainguard.dev/protodrift/sdklang"
	"chainguard.dev/protodrift/worktree"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// Config holds the per-run knobs.
type Config struct {
	// Language is the SDK language of the target repository.
	Language sdklang.Language

	// PreferPatch enables patch mode for existing files. Off means
	// every file goes straight to full regeneration.
	PreferPatch bool

	// PatchFuzz is the context-mismatch tolerance for patch
	// application, 0 to 1. Zero uses the applier default.
	PatchFuzz float64

	// MaxConcurrency bounds concurrent generation calls. Values below
	// two mean sequential processing.
	MaxConcurrency int

	// Timeout bounds each generation call. An expired call is treated
	// as collaborator unavailability. Zero means no per-call bound.
	Timeout time.Duration
}

// Pipeline runs the proto-diff propagation for one SDK repository.
type Pipeline struct {
	gen          generation.Generator
	tree         worktree.Tree
	sink         worktree.ArtifactSink
	debug        bool
	applier      *patchapply.Applier
	genaiMetrics *metrics.GenAI
	cfg          Config
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithArtifactSink directs debug artifacts (raw responses, rejected
// patches) to the given sink. The default discards them.
func WithArtifactSink(sink worktree.ArtifactSink) Option {
	return func(p *Pipeline) error {
		if sink == nil {
			return fmt.Errorf("artifact sink cannot be nil")
		}
		p.sink = sink
		p.debug = true
		return nil
	}
}

// New creates a Pipeline over the given collaborator and working tree.
func New(gen generation.Generator, tree worktree.Tree, cfg Config, opts ...Option) (*Pipeline, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if tree == nil {
		return nil, fmt.Errorf("working tree is required")
	}
	fuzz := cfg.PatchFuzz
	if fuzz == 0 {
		fuzz = patchapply.DefaultFuzz
	}
	p := &Pipeline{
		gen:          gen,
		tree:         tree,
		sink:         worktree.NopSink{},
		applier:      patchapply.New(fuzz),
		genaiMetrics: metrics.NewGenAI("chainguard.ai.protodrift"),
		cfg:          cfg,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return p, nil
}

// fileResult carries one file's generation outcome to the commit phase.
type fileResult struct {
	outcome FileOutcome
	content string
	write   bool
	usage   []generation.Usage
}

// Run executes one propagation over the tree for the given diff text.
// Generation may be concurrent; commits happen afterwards in the
// mapper's deterministic order, so output is reproducible regardless of
// dispatch interleaving.
func (p *Pipeline) Run(ctx context.Context, diffText string) (*Report, error) {
	log := clog.FromContext(ctx)

	cs, err := protodiff.Analyze(diffText)
	if err != nil {
		return nil, fmt.Errorf("analyzing proto diff: %w", err)
	}
	if cs.Empty() {
		log.Info("Proto diff contains no classified changes, nothing to do")
		return &Report{}, nil
	}

	listing, err := p.tree.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing working tree: %w", err)
	}
	mapping, err := impact.Map(cs, p.cfg.Language, listing)
	if err != nil {
		return nil, fmt.Errorf("mapping impact: %w", err)
	}

	fragments := make(map[string]string)
	for _, fc := range cs.Files() {
		fragments[fc.Path] = fc.Fragment
	}

	strategy := generation.NewStrategy(p.cfg.PreferPatch)
	results := make([]fileResult, len(mapping.Files))

	process := func(i int) {
		af := mapping.Files[i]
		results[i] = p.processFile(ctx, af, fragmentFor(af, fragments), strategy)
	}

	if p.cfg.MaxConcurrency > 1 {
		var eg errgroup.Group
		eg.SetLimit(p.cfg.MaxConcurrency)
		for i := range mapping.Files {
			eg.Go(func() error {
				process(i)
				return nil
			})
		}
		// Workers record outcomes instead of returning errors, so one
		// file's failure cannot cancel another's call.
		_ = eg.Wait()
	} else {
		for i := range mapping.Files {
			process(i)
		}
	}

	report := &Report{Warnings: mapping.Warnings}
	for _, fr := range results {
		if fr.write {
			if err := p.tree.Write(ctx, fr.outcome.Path, fr.content); err != nil {
				return nil, fmt.Errorf("writing %s: %w", fr.outcome.Path, err)
			}
		}
		report.Files = append(report.Files, fr.outcome)
		for _, u := range fr.usage {
			report.PromptTokens += u.PromptTokens
			report.CompletionTokens += u.CompletionTokens
			report.EstimatedCost += generation.EstimateCost(u)
		}
	}

	succeeded, skipped, failed := report.Counts()
	log.With("succeeded", succeeded).With("skipped", skipped).With("failed", failed).
		Info("Pipeline run complete")
	return report, nil
}

// fragmentFor joins the diff fragments of every proto file that flagged
// af, in change-set order, so the prompt carries a hunk for each change
// the guidance names.
func fragmentFor(af impact.AffectedFile, fragments map[string]string) string {
	parts := make([]string, 0, len(af.ProtoPaths))
	for _, protoPath := range af.ProtoPaths {
		if f := fragments[protoPath]; f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, "\n")
}

// processFile runs the per-file state machine: read, pick a mode, try a
// patch when chosen, fall back to full regeneration at most once.
func (p *Pipeline) processFile(ctx context.Context, af impact.AffectedFile, fragment string, strategy *generation.Strategy) (fr fileResult) {
	log := clog.FromContext(ctx).With("path", af.Path)

	var usages []generation.Usage
	defer func() { fr.usage = usages }()

	var content string
	if af.Exists {
		var err error
		if content, err = p.tree.Read(ctx, af.Path); err != nil {
			return failure(af.Path, generation.ModeFull, false, fmt.Sprintf("reading current content: %v", err))
		}
	}

	mode := strategy.ModeFor(af.Path, af.Exists)
	fellBack := false

	if mode == generation.ModePatch {
		res, err := p.generate(ctx, generation.BuildRequest(af, p.cfg.Language, generation.ModePatch, content, fragment))
		usages = append(usages, res.Usage)
		switch {
		case generation.IsUnavailable(err):
			log.With("error", err).Warn("Collaborator unavailable, skipping file")
			return skip(af.Path, generation.ModePatch, err.Error())
		case err != nil:
			return failure(af.Path, generation.ModePatch, false, err.Error())
		}

		if res.Success {
			p.sink.Save(ctx, af.Path+".patch.response", res.Raw)
			applied, err := p.applier.Apply(res.Text, content)
			if err == nil {
				return success(af.Path, generation.ModePatch, false, applied)
			}
			log.With("error", err).Warn("Patch did not apply, falling back to full regeneration")
			p.sink.Save(ctx, af.Path+".rejected.patch", res.Text)
		} else {
			log.With("reason", res.FailureReason).Warn("Patch response unusable, falling back to full regeneration")
			p.sink.Save(ctx, af.Path+".patch.response", res.Raw)
		}

		strategy.NotePatchFailure(af.Path)
		p.genaiMetrics.RecordFallback(ctx, string(p.cfg.Language))
		fellBack = true
	}

	res, err := p.generate(ctx, generation.BuildRequest(af, p.cfg.Language, generation.ModeFull, content, fragment))
	usages = append(usages, res.Usage)
	switch {
	case err != nil && fellBack:
		// The fallback is the last resort; any failure leaves the file
		// untouched.
		return failure(af.Path, generation.ModeFull, true, ReasonPatchAndFallbackFailed)
	case generation.IsUnavailable(err):
		log.With("error", err).Warn("Collaborator unavailable, skipping file")
		return skip(af.Path, generation.ModeFull, err.Error())
	case err != nil:
		return failure(af.Path, generation.ModeFull, false, err.Error())
	}

	p.sink.Save(ctx, af.Path+".full.response", res.Raw)
	if !res.Success {
		if fellBack {
			return failure(af.Path, generation.ModeFull, true, ReasonPatchAndFallbackFailed)
		}
		return failure(af.Path, generation.ModeFull, false, res.FailureReason)
	}
	return success(af.Path, generation.ModeFull, fellBack, res.Text)
}

// generate invokes the collaborator under the configured per-call
// timeout, persisting the built prompt when debug artifacts are on.
func (p *Pipeline) generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	if p.debug {
		if prompt, err := generation.BuildPrompt(req); err == nil {
			p.sink.Save(ctx, req.Path+"."+string(req.Mode)+".prompt", prompt)
		}
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	return p.gen.Generate(ctx, req)
}

func success(path string, mode generation.Mode, fellBack bool, content string) fileResult {
	return fileResult{
		outcome: FileOutcome{Path: path, Status: StatusSucceeded, Mode: mode, FellBack: fellBack},
		content: content,
		write:   true,
	}
}

func skip(path string, mode generation.Mode, reason string) fileResult {
	return fileResult{outcome: FileOutcome{Path: path, Status: StatusSkipped, Mode: mode, Reason: reason}}
}

func failure(path string, mode generation.Mode, fellBack bool, reason string) fileResult {
	return fileResult{outcome: FileOutcome{Path: path, Status: StatusFailed, Mode: mode, FellBack: fellBack, Reason: reason}}
}

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package scenario

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"chainguard.dev/protodrift/sdklang"
	"gopkg.in/yaml.v3"
)

// manifest is the on-disk scenario.yaml shape. Stub response values are
// paths relative to the scenario directory, not inline contents.
type manifest struct {
	Name        string      `yaml:"name"`
	Language    string      `yaml:"language"`
	Compare     CompareMode `yaml:"compare"`
	PreferPatch bool        `yaml:"prefer_patch"`
	Stub        *struct {
		Patches     map[string]string `yaml:"patches"`
		Files       map[string]string `yaml:"files"`
		Unavailable []string          `yaml:"unavailable"`
	} `yaml:"stub"`
}

// Load reads one scenario directory: scenario.yaml, proto_diff.txt, the
// snapshot/ and expected/ trees, and any stub response files the
// manifest references.
func Load(dir string) (*Scenario, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "scenario.yaml"))
	if err != nil {
		return nil, fmt.Errorf("reading scenario manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing scenario manifest: %w", err)
	}
	if m.Name == "" {
		m.Name = filepath.Base(dir)
	}
	if m.Compare == "" {
		m.Compare = CompareExact
	}
	if m.Compare != CompareExact && m.Compare != CompareSkip {
		return nil, fmt.Errorf("scenario %s: unknown compare mode %q", m.Name, m.Compare)
	}
	lang := sdklang.Language(m.Language)
	if _, err := sdklang.ConventionFor(lang); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", m.Name, err)
	}

	diff, err := os.ReadFile(filepath.Join(dir, "proto_diff.txt"))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: reading proto diff: %w", m.Name, err)
	}

	snapshot, err := readTree(filepath.Join(dir, "snapshot"))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", m.Name, err)
	}

	expected := map[string]string{}
	if m.Compare == CompareExact {
		if expected, err = readTree(filepath.Join(dir, "expected")); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", m.Name, err)
		}
	}

	s := &Scenario{
		Name:        m.Name,
		Language:    lang,
		DiffText:    string(diff),
		Snapshot:    snapshot,
		Expected:    expected,
		Compare:     m.Compare,
		PreferPatch: m.PreferPatch,
	}
	if m.Stub != nil {
		stub := &StubConfig{
			Patches:     map[string]string{},
			Files:       map[string]string{},
			Unavailable: m.Stub.Unavailable,
		}
		for path, ref := range m.Stub.Patches {
			content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ref)))
			if err != nil {
				return nil, fmt.Errorf("scenario %s: reading stub patch %s: %w", m.Name, ref, err)
			}
			stub.Patches[path] = string(content)
		}
		for path, ref := range m.Stub.Files {
			content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ref)))
			if err != nil {
				return nil, fmt.Errorf("scenario %s: reading stub file %s: %w", m.Name, ref, err)
			}
			stub.Files[path] = string(content)
		}
		s.Stub = stub
	}
	return s, nil
}

// LoadDir loads every scenario under root: each child directory holding
// a scenario.yaml is one scenario. Results are sorted by name so runs
// are reproducible.
func LoadDir(root string) ([]*Scenario, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading scenario root: %w", err)
	}
	var scenarios []*Scenario
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "scenario.yaml")); err != nil {
			continue
		}
		s, err := Load(dir)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Name < scenarios[j].Name })
	return scenarios, nil
}

// readTree loads a directory into a path-to-content map with
// slash-separated relative paths.
func readTree(root string) (map[string]string, error) {
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading tree %s: %w", root, err)
	}
	return out, nil
}

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"unicode"
)

// stringLiteral only accepts literal strings, so templates and literal
// bindings cannot be built from request data.
type stringLiteral string

// Prompt is a template with named placeholders. Binding returns a new
// Prompt; the original is never mutated, so one template can serve many
// concurrent requests.
type Prompt struct {
	template string
	bindings map[string]binding
}

// Bindable is implemented by request types that know how to bind their
// fields into a prompt template.
type Bindable interface {
	Bind(prompt *Prompt) (*Prompt, error)
}

// NewPrompt parses a template literal and records its placeholders.
func NewPrompt(template stringLiteral) (*Prompt, error) {
	bindings := make(map[string]binding)
	_, err := walkTemplate(string(template), func(name string) (string, error) {
		if _, exists := bindings[name]; !exists {
			bindings[name] = &unboundBinding{name: name}
		}
		return fmt.Sprintf("{{%s}}", name), nil
	})
	if err != nil {
		return nil, err
	}
	return &Prompt{template: string(template), bindings: bindings}, nil
}

// MustPrompt is NewPrompt for package-level template variables.
func MustPrompt(template stringLiteral) *Prompt {
	p, err := NewPrompt(template)
	if err != nil {
		panic(err)
	}
	return p
}

// Bindings returns the placeholder names found in the template.
func (p *Prompt) Bindings() map[string]struct{} {
	names := make(map[string]struct{}, len(p.bindings))
	for name := range p.bindings {
		names[name] = struct{}{}
	}
	return names
}

// BindStringLiteral binds a developer-provided literal to a placeholder.
func (p *Prompt) BindStringLiteral(name string, value stringLiteral) (*Prompt, error) {
	return p.bind(name, &literalBinding{val: string(value)})
}

// BindString binds request data to a placeholder. Unlike
// BindStringLiteral the value may come from anywhere: file contents,
// diff fragments, model output.
func (p *Prompt) BindString(name, value string) (*Prompt, error) {
	return p.bind(name, &literalBinding{val: value})
}

// BindJSON binds structured data to a placeholder as indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	return p.bind(name, &jsonBinding{data: data})
}

func (p *Prompt) bind(name string, b binding) (*Prompt, error) {
	existing, exists := p.bindings[name]
	if !exists {
		return nil, fmt.Errorf("binding %q not found in template", name)
	}
	if _, unbound := existing.(*unboundBinding); !unbound {
		return nil, fmt.Errorf("binding %q already bound", name)
	}
	next := &Prompt{template: p.template, bindings: maps.Clone(p.bindings)}
	next.bindings[name] = b
	return next, nil
}

// Build assembles the final prompt text, failing if any placeholder is
// still unbound.
func (p *Prompt) Build() (string, error) {
	values := make(map[string]string, len(p.bindings))
	for name, b := range p.bindings {
		val, err := b.value()
		if err != nil {
			return "", err
		}
		values[name] = val
	}
	return walkTemplate(p.template, func(name string) (string, error) {
		return values[name], nil
	})
}

type binding interface {
	value() (string, error)
}

type unboundBinding struct{ name string }

func (u *unboundBinding) value() (string, error) {
	return "", fmt.Errorf("unbound placeholder: %s", u.name)
}

type literalBinding struct{ val string }

func (l *literalBinding) value() (string, error) { return l.val, nil }

type jsonBinding struct{ data any }

func (j *jsonBinding) value() (string, error) {
	b, err := json.MarshalIndent(j.data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON binding: %w", err)
	}
	return string(b), nil
}

// walkTemplate tokenizes the template and calls resolve for each
// placeholder, leaving all other text untouched.
func walkTemplate(template string, resolve func(name string) (string, error)) (string, error) {
	var result strings.Builder
	for len(template) > 0 {
		start := strings.Index(template, "{{")
		if start == -1 {
			result.WriteString(template)
			break
		}
		result.WriteString(template[:start])

		end := strings.Index(template[start:], "}}")
		if end == -1 {
			return "", errors.New("unclosed binding: missing '}}'")
		}
		end += start + 2

		name := strings.TrimSpace(template[start+2 : end-2])
		if !isValidIdentifier(name) {
			return "", fmt.Errorf("invalid binding identifier %q", name)
		}
		replacement, err := resolve(name)
		if err != nil {
			return "", err
		}
		result.WriteString(replacement)
		template = template[end:]
	}
	return result.String(), nil
}

// isValidIdentifier accepts a leading letter followed by letters, digits,
// and underscores.
func isValidIdentifier(s string) bool {
	if len(s) == 0 {
		return false
	}
	runes := []rune(s)
	if !unicode.IsLetter(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generation

import (
	"fmt"

	"chainguard.dev/protodrift/promptbuilder"
	"github.com/invopop/jsonschema"
)

// SystemPrompt frames every generation call, patch or full.
const SystemPrompt = `You are an expert SDK maintainer. A protobuf API definition has
changed, and the SDK file you are given must be updated to match. Preserve the
file's existing style, imports, and documentation conventions exactly. Make only
the changes the protobuf diff requires; do not refactor, reorder, or reformat
unrelated code.`

var patchPrompt = promptbuilder.MustPrompt(`The protobuf API changed as follows:

{{guidance}}

Relevant protobuf diff:
<proto_diff>
{{fragment}}
</proto_diff>

Current contents of {{path}} ({{language}}):
<file>
{{content}}
</file>

Produce a minimal unified-diff patch that updates this file for the protobuf
changes above. Requirements:
- Output only the patch, starting with an @@ hunk header. No prose.
- Include at least 3 unchanged context lines around each change.
- Never touch lines the protobuf changes do not require touching.`)

var fullPrompt = promptbuilder.MustPrompt(`The protobuf API changed as follows:

{{guidance}}

Relevant protobuf diff:
<proto_diff>
{{fragment}}
</proto_diff>

{{currentSection}}

Write the complete updated contents of {{path}} ({{language}}), reflecting every
protobuf change above. Respond with a single JSON object matching this schema,
and nothing else:

{{schema}}`)

// currentFileSection is interpolated into the full prompt when the file
// already exists; new files get creation framing instead.
var currentFileSection = promptbuilder.MustPrompt(`Current contents of {{path}}:
<file>
{{content}}
</file>`)

const newFileSection = `This file does not exist yet. Create it from scratch, following the
conventions of the surrounding SDK for naming, imports, and structure.`

// Bind binds the request's fields into a prompt template. Only the
// placeholders the template declares are bound; both the patch and full
// templates share this implementation.
func (r Request) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	bindings := p.Bindings()
	bind := func(name, value string) error {
		if _, ok := bindings[name]; !ok {
			return nil
		}
		var err error
		p, err = p.BindString(name, value)
		return err
	}

	if err := bind("path", r.Path); err != nil {
		return nil, err
	}
	if err := bind("language", string(r.Language)); err != nil {
		return nil, err
	}
	if err := bind("content", r.Content); err != nil {
		return nil, err
	}
	if err := bind("fragment", r.Fragment); err != nil {
		return nil, err
	}
	if err := bind("guidance", r.Guidance); err != nil {
		return nil, err
	}
	return p, nil
}

// BuildPrompt renders the user prompt for a request. The system prompt
// is the package constant; providers send both.
func BuildPrompt(req Request) (string, error) {
	switch req.Mode {
	case ModePatch:
		p, err := req.Bind(patchPrompt)
		if err != nil {
			return "", fmt.Errorf("binding patch prompt: %w", err)
		}
		return p.Build()

	case ModeFull:
		section := newFileSection
		if req.Content != "" {
			sp, err := req.Bind(currentFileSection)
			if err != nil {
				return "", fmt.Errorf("binding file section: %w", err)
			}
			if section, err = sp.Build(); err != nil {
				return "", err
			}
		}

		p, err := req.Bind(fullPrompt)
		if err != nil {
			return "", fmt.Errorf("binding full prompt: %w", err)
		}
		if p, err = p.BindString("currentSection", section); err != nil {
			return "", err
		}
		if p, err = p.BindJSON("schema", outputSchema()); err != nil {
			return "", err
		}
		return p.Build()

	default:
		return "", fmt.Errorf("unknown generation mode: %q", req.Mode)
	}
}

// outputSchema reflects the FileOutput envelope into a JSON schema for
// embedding in full-mode prompts.
func outputSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	return reflector.Reflect(&FileOutput{})
}

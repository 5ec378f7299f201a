/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generation

import (
	"encoding/json"
	"errors"
	"strings"
)

// FileOutput is the structured envelope full-mode responses use. Its
// schema is reflected into the prompt so every provider sees the same
// contract.
type FileOutput struct {
	Path    string `json:"path" jsonschema:"description=Repository-relative path of the rewritten file"`
	Content string `json:"content" jsonschema:"description=Complete contents of the rewritten file"`
}

// ExtractCode strips a surrounding Markdown code fence, if present, and
// returns the inner text. Models fence their output more often than not
// and the language tag on the fence varies, so any tag is accepted.
func ExtractCode(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	// Drop the opening fence line, tag included.
	if idx := strings.Index(text, "\n"); idx != -1 {
		text = text[idx+1:]
	} else {
		return ""
	}
	if idx := strings.LastIndex(text, "```"); idx != -1 {
		text = text[:idx]
	}
	return strings.TrimRight(text, "\n") + "\n"
}

// extractFileOutput parses a full-mode response. The happy path is the
// FileOutput JSON envelope; responses that are plainly source code with
// no JSON in sight are accepted as-is, since older models ignore the
// envelope under long prompts.
func extractFileOutput(raw string) (string, error) {
	text := ExtractCode(raw)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response")
	}

	if jsonText, ok := carveJSON(text); ok {
		var out FileOutput
		if err := json.Unmarshal([]byte(jsonText), &out); err == nil {
			if strings.TrimSpace(out.Content) == "" {
				return "", errors.New("response envelope has empty content")
			}
			return out.Content, nil
		}
	}

	// Not an envelope. Treat the whole response as file contents unless
	// it looks like a half-emitted JSON object, which means truncation.
	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		return "", errors.New("response is truncated JSON")
	}
	return text, nil
}

// carveJSON finds the outermost JSON object in text, honoring strings
// and escapes so braces in code samples do not fool it.
func carveJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

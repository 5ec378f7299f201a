/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare text", in: "hello\n", want: "hello"},
		{name: "fenced with tag", in: "```python\nx = 1\n```", want: "x = 1\n"},
		{name: "fenced no tag", in: "```\nx = 1\n```", want: "x = 1\n"},
		{name: "fence only", in: "```", want: ""},
		{name: "unterminated fence", in: "```diff\n@@ -1 +1 @@\n-a\n+b", want: "@@ -1 +1 @@\n-a\n+b\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ExtractCode(tc.in))
		})
	}
}

func TestExtractFileOutputBracesInCode(t *testing.T) {
	t.Parallel()
	// Braces inside the JSON string must not confuse the carver.
	raw := `{"path": "client.ts", "content": "const m = {a: 1};\nexport {m};\n"}`
	got, err := extractFileOutput(raw)
	require.NoError(t, err)
	assert.Equal(t, "const m = {a: 1};\nexport {m};\n", got)
}

func TestCarveJSONHonorsStrings(t *testing.T) {
	t.Parallel()
	text := `prefix {"k": "va}lue"} suffix`
	carved, ok := carveJSON(text)
	require.True(t, ok)
	assert.Equal(t, `{"k": "va}lue"}`, carved)
}

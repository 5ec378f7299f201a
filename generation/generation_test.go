/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generation

import (
	"context"
	"strings"
	"testing"

	"chainguard.dev/protodrift/impact"
	"chainguard.dev/protodrift/protodiff"
	"chainguard.dev/protodrift/sdklang"
)

func TestStrategyModeDecision(t *testing.T) {
	t.Parallel()
	s := NewStrategy(true)

	if got := s.ModeFor("client.py", true); got != ModePatch {
		t.Errorf("existing file with patch preference = %s, want patch", got)
	}
	if got := s.ModeFor("button.py", false); got != ModeFull {
		t.Errorf("missing file = %s, want full", got)
	}

	s.NotePatchFailure("client.py")
	if got := s.ModeFor("client.py", true); got != ModeFull {
		t.Errorf("after patch failure = %s, want full", got)
	}

	noPatch := NewStrategy(false)
	if got := noPatch.ModeFor("client.py", true); got != ModeFull {
		t.Errorf("without patch preference = %s, want full", got)
	}
}

func TestFinalizePatch(t *testing.T) {
	t.Parallel()
	req := Request{Mode: ModePatch, Path: "gripper.py"}

	fenced := "```diff\n@@ -1,3 +1,4 @@\n ctx\n+new\n ctx\n```"
	res := Finalize(req, fenced)
	if !res.Success {
		t.Fatalf("fenced patch rejected: %s", res.FailureReason)
	}
	if strings.Contains(res.Text, "```") {
		t.Errorf("fence survived extraction: %q", res.Text)
	}
	if res.Raw != fenced {
		t.Error("raw response not preserved")
	}

	for name, raw := range map[string]string{
		"empty":    "   \n",
		"no hunks": "Sure! Here is how I would change the file.",
	} {
		if res := Finalize(req, raw); res.Success {
			t.Errorf("%s response accepted", name)
		} else if res.FailureReason == "" {
			t.Errorf("%s response has no failure reason", name)
		}
	}
}

func TestFinalizeFull(t *testing.T) {
	t.Parallel()
	req := Request{Mode: ModeFull, Path: "gripper.py"}

	envelope := `{"path": "gripper.py", "content": "def grab():\n    pass\n"}`
	res := Finalize(req, "```json\n"+envelope+"\n```")
	if !res.Success {
		t.Fatalf("envelope rejected: %s", res.FailureReason)
	}
	if res.Text != "def grab():\n    pass\n" {
		t.Errorf("content = %q", res.Text)
	}

	// Raw code with no envelope is accepted as the file contents.
	res = Finalize(req, "```python\ndef grab():\n    pass\n```")
	if !res.Success {
		t.Fatalf("raw code rejected: %s", res.FailureReason)
	}
	if !strings.Contains(res.Text, "def grab()") {
		t.Errorf("content = %q", res.Text)
	}

	// A dangling JSON object means the response was cut off.
	if res := Finalize(req, `{"path": "gripper.py", "content": "def gr`); res.Success {
		t.Error("truncated JSON accepted")
	}
}

func TestBuildPromptPatch(t *testing.T) {
	t.Parallel()
	req := Request{
		Mode:     ModePatch,
		Path:     "src/viam/components/gripper/client.py",
		Language: sdklang.Python,
		Content:  "class GripperClient:\n    pass\n",
		Fragment: "+  string extra = 99;",
		Guidance: "- field GrabRequest.extra added",
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	for _, want := range []string{req.Path, req.Content, req.Fragment, req.Guidance, "unified-diff"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptFull(t *testing.T) {
	t.Parallel()
	existing := Request{
		Mode:     ModeFull,
		Path:     "src/viam/components/gripper/client.py",
		Language: sdklang.Python,
		Content:  "class GripperClient:\n    pass\n",
		Fragment: "+  string extra = 99;",
		Guidance: "- field GrabRequest.extra added",
	}
	prompt, err := BuildPrompt(existing)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	for _, want := range []string{existing.Content, `"content"`, "JSON object"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	created := existing
	created.Content = ""
	prompt, err = BuildPrompt(created)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(prompt, "does not exist yet") {
		t.Error("new-file prompt missing creation framing")
	}
}

func TestGuidance(t *testing.T) {
	t.Parallel()
	got := Guidance([]protodiff.ElementChange{
		{Kind: protodiff.KindField, Op: protodiff.OpAdded, Name: "extra", Enclosing: "GrabRequest"},
		{Kind: protodiff.KindField, Op: protodiff.OpRenamed, Name: "location_id", OldName: "location", Enclosing: "MoveRequest"},
	})
	want := "- field GrabRequest.extra added\n- field MoveRequest.location renamed to MoveRequest.location_id"
	if got != want {
		t.Errorf("Guidance = %q, want %q", got, want)
	}
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()
	af := impact.AffectedFile{
		Path:   "src/viam/components/gripper/client.py",
		Exists: true,
		Elements: []protodiff.ElementChange{
			{Kind: protodiff.KindField, Op: protodiff.OpAdded, Name: "extra", Enclosing: "GrabRequest"},
		},
	}
	req := BuildRequest(af, sdklang.Python, ModePatch, "content", "fragment")
	if req.Path != af.Path || req.Mode != ModePatch || req.Content != "content" || req.Fragment != "fragment" {
		t.Errorf("request fields wrong: %+v", req)
	}
	if req.Guidance != "- field GrabRequest.extra added" {
		t.Errorf("guidance = %q", req.Guidance)
	}
}

func TestStub(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	stub := &Stub{
		Patches:     map[string]string{"a.py": "@@ -1 +1 @@\n-x\n+y"},
		Files:       map[string]string{"a.py": "y\n"},
		Unavailable: map[string]bool{"down.py": true},
	}

	res, err := stub.Generate(ctx, Request{Mode: ModePatch, Path: "a.py"})
	if err != nil || !res.Success {
		t.Fatalf("patch replay: err=%v success=%v", err, res.Success)
	}
	res, err = stub.Generate(ctx, Request{Mode: ModeFull, Path: "b.py"})
	if err != nil {
		t.Fatalf("missing response errored: %v", err)
	}
	if res.Success {
		t.Error("missing response reported success")
	}
	if _, err := stub.Generate(ctx, Request{Mode: ModeFull, Path: "down.py"}); !IsUnavailable(err) {
		t.Errorf("outage err = %v, want unavailable", err)
	}
	if got := len(stub.Calls()); got != 3 {
		t.Errorf("recorded %d calls, want 3", got)
	}
}

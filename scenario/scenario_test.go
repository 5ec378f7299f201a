/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package scenario_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chainguard.dev/protodrift/scenario"
	"github.com/google/go-cmp/cmp"
)

const gripperDiff = `diff --git a/proto/component/gripper/v1/gripper.proto b/proto/component/gripper/v1/gripper.proto
index 1111111..2222222 100644
--- a/proto/component/gripper/v1/gripper.proto
+++ b/proto/component/gripper/v1/gripper.proto
@@ -10,6 +10,7 @@ message GrabRequest {
   // Name of a gripper
   string name = 1;
+  bytes extra = 2;
 }
`

const (
	clientPath = "src/viam/components/gripper/client.py"
	testPath   = "tests/test_gripper.py"

	clientBefore = "class GripperClient:\n    def grab(self, name):\n        return name\n"
	clientAfter  = "class GripperClient:\n    def grab(self, name):\n        self.extra = None\n        return name\n"
	testBefore   = "def test_grab():\n    assert grab(\"g\")\n"
	testAfter    = "def test_grab():\n    assert grab(\"g\")\n    assert grab(\"g\", extra=None)\n"
)

const clientPatch = `@@ -1,3 +1,4 @@
 class GripperClient:
     def grab(self, name):
+        self.extra = None
         return name
`

const testPatch = `@@ -1,2 +1,3 @@
 def test_grab():
     assert grab("g")
+    assert grab("g", extra=None)
`

const passingManifest = `name: add-grab-extra
language: python
compare: exact
prefer_patch: true
stub:
  patches:
    src/viam/components/gripper/client.py: responses/client.patch
    tests/test_gripper.py: responses/test.patch
`

// writeScenario materializes a scenario fixture directory.
func writeScenario(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		target := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func passingFixture() map[string]string {
	return map[string]string{
		"scenario.yaml":            passingManifest,
		"proto_diff.txt":           gripperDiff,
		"snapshot/" + clientPath:   clientBefore,
		"snapshot/" + testPath:     testBefore,
		"expected/" + clientPath:   clientAfter,
		"expected/" + testPath:     testAfter,
		"responses/client.patch":   clientPatch,
		"responses/test.patch":     testPatch,
	}
}

func TestLoadAndRunPass(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeScenario(t, dir, passingFixture())

	s, err := scenario.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "add-grab-extra" || s.Compare != scenario.CompareExact || s.Stub == nil {
		t.Fatalf("scenario loaded wrong: %+v", s)
	}

	outcome := scenario.NewRunner(nil).Run(context.Background(), s)
	if outcome.Err != nil {
		t.Fatalf("Run: %v", outcome.Err)
	}
	if !outcome.Passed {
		t.Fatalf("scenario failed: %+v", outcome.Discrepancies)
	}
	succeeded, skipped, failed := outcome.Report.Counts()
	if succeeded != 2 || skipped != 0 || failed != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/0/0", succeeded, skipped, failed)
	}
}

func TestRunDetectsContentMismatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fixture := passingFixture()
	fixture["expected/"+clientPath] = "something else entirely\n"
	writeScenario(t, dir, fixture)

	s, err := scenario.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	outcome := scenario.NewRunner(nil).Run(context.Background(), s)
	if outcome.Passed {
		t.Fatal("mismatching scenario passed")
	}
	if len(outcome.Discrepancies) != 1 {
		t.Fatalf("discrepancies = %+v", outcome.Discrepancies)
	}
	d := outcome.Discrepancies[0]
	if d.Path != clientPath || d.Kind != scenario.ContentDiff || d.Diff == "" {
		t.Errorf("discrepancy = %+v", d)
	}
}

func TestRunDetectsMissingAndExtra(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fixture := passingFixture()
	// Expected set: client only, plus a file the run will never create.
	delete(fixture, "expected/"+testPath)
	fixture["expected/docs/readme.md"] = "hello\n"
	writeScenario(t, dir, fixture)

	s, err := scenario.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	outcome := scenario.NewRunner(nil).Run(context.Background(), s)
	if outcome.Passed {
		t.Fatal("scenario passed despite snapshot shape mismatch")
	}

	kinds := map[string]scenario.DiscrepancyKind{}
	for _, d := range outcome.Discrepancies {
		kinds[d.Path] = d.Kind
	}
	if kinds["docs/readme.md"] != scenario.Missing {
		t.Errorf("readme discrepancy = %v, want missing", kinds["docs/readme.md"])
	}
	if kinds[testPath] != scenario.Extra {
		t.Errorf("test file discrepancy = %v, want extra", kinds[testPath])
	}
}

func TestSkipComparisonStillFailsOnPipelineError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fixture := passingFixture()
	fixture["scenario.yaml"] = strings.Replace(passingManifest, "compare: exact", "compare: skip", 1)
	fixture["proto_diff.txt"] = "@@ -1 +1 @@\n-a\n+b\n"
	delete(fixture, "expected/"+clientPath)
	delete(fixture, "expected/"+testPath)
	writeScenario(t, dir, fixture)

	s, err := scenario.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	outcome := scenario.NewRunner(nil).Run(context.Background(), s)
	if outcome.Passed || outcome.Err == nil {
		t.Fatalf("skip-mode scenario with broken diff did not fail: %+v", outcome)
	}
}

func TestSkipComparisonPassesWithoutExpected(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fixture := passingFixture()
	fixture["scenario.yaml"] = strings.Replace(passingManifest, "compare: exact", "compare: skip", 1)
	delete(fixture, "expected/"+clientPath)
	delete(fixture, "expected/"+testPath)
	writeScenario(t, dir, fixture)

	s, err := scenario.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	outcome := scenario.NewRunner(nil).Run(context.Background(), s)
	if outcome.Err != nil || !outcome.Passed {
		t.Fatalf("skip-mode scenario failed: %+v", outcome)
	}
}

func TestScenarioIsolation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeScenario(t, dir, passingFixture())
	s, err := scenario.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	runner := scenario.NewRunner(nil)
	first := runner.Run(context.Background(), s)
	second := runner.Run(context.Background(), s)
	if !first.Passed || !second.Passed {
		t.Fatalf("outcomes: first=%+v second=%+v", first, second)
	}

	// The fixture snapshot itself must never be mutated by a run.
	if s.Snapshot[clientPath] != clientBefore {
		t.Error("run mutated the scenario snapshot")
	}
}

func TestLoadDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeScenario(t, filepath.Join(root, "b-scenario"), passingFixture())

	fixture := passingFixture()
	fixture["scenario.yaml"] = strings.Replace(passingManifest, "add-grab-extra", "a-scenario", 1)
	writeScenario(t, filepath.Join(root, "a-scenario"), fixture)

	// Stray files are ignored.
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	scenarios, err := scenario.LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"a-scenario", "add-grab-extra"}, names); diff != "" {
		t.Errorf("scenario names (-want +got):\n%s", diff)
	}
}

func TestWriteReport(t *testing.T) {
	t.Parallel()
	outcomes := []scenario.Outcome{
		{Name: "good", Passed: true},
		{Name: "bad", Discrepancies: []scenario.Discrepancy{{Path: clientPath, Kind: scenario.ContentDiff, Diff: "-x\n+y"}}},
	}
	var buf strings.Builder
	if err := scenario.WriteReport(&buf, outcomes); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"good", "pass", "bad", "fail", "content-diff"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

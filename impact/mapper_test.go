/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package impact_test

import (
	"testing"

	"chainguard.dev/protodrift/impact"
	"chainguard.dev/protodrift/protodiff"
	"chainguard.dev/protodrift/sdklang"
	"github.com/google/go-cmp/cmp"
)

const gripperDiff = `diff --git a/proto/component/gripper/v1/gripper.proto b/proto/component/gripper/v1/gripper.proto
--- a/proto/component/gripper/v1/gripper.proto
+++ b/proto/component/gripper/v1/gripper.proto
@@ -20,6 +20,7 @@ service GripperService {
   rpc Grab(GrabRequest) returns (GrabResponse);
+  rpc GetKinematics(GetKinematicsRequest) returns (GetKinematicsResponse);
 }
`

func analyze(t *testing.T, diff string) *protodiff.ChangeSet {
	t.Helper()
	cs, err := protodiff.Analyze(diff)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return cs
}

func TestMapPython(t *testing.T) {
	t.Parallel()
	listing := []string{
		"pyproject.toml",
		"src/viam/components/gripper/client.py",
		"src/viam/components/gripper/gripper.py",
		"tests/test_gripper.py",
		"tests/test_arm.py",
	}
	m, err := impact.Map(analyze(t, gripperDiff), sdklang.Python, listing)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	var paths []string
	for _, af := range m.Files {
		paths = append(paths, af.Path)
	}
	want := []string{
		"src/viam/components/gripper/client.py",
		"src/viam/components/gripper/gripper.py",
		"tests/test_gripper.py",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	if len(m.Warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", m.Warnings)
	}
	for _, af := range m.Files {
		if len(af.Elements) == 0 {
			t.Errorf("file %s flagged with no responsible elements", af.Path)
		}
		if !af.Exists {
			t.Errorf("file %s should be marked existing", af.Path)
		}
	}
}

func TestMapAccumulatesFlaggingProtoFiles(t *testing.T) {
	t.Parallel()
	// Two proto packages share the gripper component; the one SDK file
	// they flag must remember both, or downstream prompts lose half the
	// diff.
	diff := `diff --git a/proto/component/gripper/v1/gripper.proto b/proto/component/gripper/v1/gripper.proto
--- a/proto/component/gripper/v1/gripper.proto
+++ b/proto/component/gripper/v1/gripper.proto
@@ -10,6 +10,7 @@ message GrabRequest {
   string name = 1;
+  bytes extra = 2;
 }
diff --git a/proto/service/gripper/v1/gripper.proto b/proto/service/gripper/v1/gripper.proto
--- a/proto/service/gripper/v1/gripper.proto
+++ b/proto/service/gripper/v1/gripper.proto
@@ -5,6 +5,7 @@ message StopRequest {
   string name = 1;
+  bool force = 2;
 }
`
	listing := []string{
		"pyproject.toml",
		"src/viam/components/gripper/client.py",
	}
	m, err := impact.Map(analyze(t, diff), sdklang.Python, listing)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(m.Files) != 1 {
		t.Fatalf("expected 1 file, got %+v", m.Files)
	}
	wantProtos := []string{
		"proto/component/gripper/v1/gripper.proto",
		"proto/service/gripper/v1/gripper.proto",
	}
	if diff := cmp.Diff(wantProtos, m.Files[0].ProtoPaths); diff != "" {
		t.Errorf("ProtoPaths mismatch (-want +got):\n%s", diff)
	}
	var elements []string
	for _, ec := range m.Files[0].Elements {
		elements = append(elements, ec.Name)
	}
	if diff := cmp.Diff([]string{"extra", "force"}, elements); diff != "" {
		t.Errorf("elements mismatch (-want +got):\n%s", diff)
	}
}

func TestMapOrderingSourceBeforeTest(t *testing.T) {
	t.Parallel()
	listing := []string{
		"pubspec.yaml",
		"lib/src/components/gripper/gripper.dart",
		"test/unit_test/components/gripper_test.dart",
	}
	m, err := impact.Map(analyze(t, gripperDiff), sdklang.Flutter, listing)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(m.Files) != 2 {
		t.Fatalf("expected 2 files, got %+v", m.Files)
	}
	if m.Files[0].IsTest || !m.Files[1].IsTest {
		t.Errorf("expected source before test, got %+v", m.Files)
	}
}

func TestMapStableAcrossCalls(t *testing.T) {
	t.Parallel()
	listing := []string{
		"pyproject.toml",
		"src/viam/components/gripper/client.py",
		"tests/test_gripper.py",
	}
	cs := analyze(t, gripperDiff)
	a, err := impact.Map(cs, sdklang.Python, listing)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	b, err := impact.Map(cs, sdklang.Python, listing)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("mapping not stable (-first +second):\n%s", diff)
	}
}

func TestMapNewServiceProposesFiles(t *testing.T) {
	t.Parallel()
	diff := `diff --git a/proto/component/button/v1/button.proto b/proto/component/button/v1/button.proto
--- /dev/null
+++ b/proto/component/button/v1/button.proto
@@ -0,0 +1,4 @@
+service ButtonService {
+  rpc Push(PushRequest) returns (PushResponse);
+}
`
	listing := []string{"pyproject.toml", "tests/test_arm.py"}
	m, err := impact.Map(analyze(t, diff), sdklang.Python, listing)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	var newFiles []string
	for _, af := range m.Files {
		if !af.Exists {
			newFiles = append(newFiles, af.Path)
		}
	}
	want := []string{
		"src/viam/components/button.py",
		"tests/test_button.py",
	}
	if diff := cmp.Diff(want, newFiles); diff != "" {
		t.Errorf("proposed files mismatch (-want +got):\n%s", diff)
	}
}

func TestMapUnmappedChangeWarns(t *testing.T) {
	t.Parallel()
	// No gripper files exist in this listing, so field changes have
	// nowhere to land and must surface as warnings, not errors.
	diff := `diff --git a/proto/component/gripper/v1/gripper.proto b/proto/component/gripper/v1/gripper.proto
--- a/proto/component/gripper/v1/gripper.proto
+++ b/proto/component/gripper/v1/gripper.proto
@@ -10,6 +10,7 @@ message GrabRequest {
   string name = 1;
+  bytes extra = 2;
 }
`
	m, err := impact.Map(analyze(t, diff), sdklang.Python, []string{"pyproject.toml"})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(m.Files) != 0 {
		t.Errorf("expected no mapped files, got %+v", m.Files)
	}
	if len(m.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %+v", m.Warnings)
	}
	if m.Warnings[0].Element.Name != "extra" {
		t.Errorf("warning for wrong element: %+v", m.Warnings[0])
	}
}

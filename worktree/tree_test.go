/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package worktree_test

import (
	"context"
	"slices"
	"testing"

	"chainguard.dev/protodrift/worktree"
	"github.com/google/go-cmp/cmp"
)

func TestMemIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	snapshot := map[string]string{"client.py": "def foo(): ..."}

	tree := worktree.NewMem(snapshot)
	if err := tree.Write(ctx, "client.py", "def foo(bar): ..."); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// The seed snapshot must not observe writes.
	if snapshot["client.py"] != "def foo(): ..." {
		t.Error("write leaked into the seed snapshot")
	}
	// And the returned snapshot must not alias internal state.
	snap := tree.Snapshot()
	snap["client.py"] = "mutated"
	got, err := tree.Read(ctx, "client.py")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "def foo(bar): ..." {
		t.Errorf("Read = %q after snapshot mutation", got)
	}
}

func TestMemReadMissing(t *testing.T) {
	t.Parallel()
	tree := worktree.NewMem(nil)
	if _, err := tree.Read(context.Background(), "absent.py"); err == nil {
		t.Fatal("expected error reading missing file")
	}
	ok, err := tree.Exists(context.Background(), "absent.py")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("Exists reported true for missing file")
	}
}

func TestDirRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tree, err := worktree.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	if err := tree.Write(ctx, "src/components/gripper.py", "content"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := tree.Read(ctx, "src/components/gripper.py")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "content" {
		t.Errorf("Read = %q", got)
	}

	listing, err := tree.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	slices.Sort(listing)
	if diff := cmp.Diff([]string{"src/components/gripper.py"}, listing); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestDirRejectsEscape(t *testing.T) {
	t.Parallel()
	tree, err := worktree.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	if err := tree.Write(context.Background(), "../outside.txt", "x"); err == nil {
		t.Fatal("expected error writing outside the root")
	}
}

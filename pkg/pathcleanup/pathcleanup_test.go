package pathcleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/scanwell-labs/dicomsort/pkg/pathscan"
)

func folders(names ...string) []pathscan.SourceFolderEntry {
	var out []pathscan.SourceFolderEntry
	for _, n := range names {
		out = append(out, pathscan.SourceFolderEntry{Path: "/study/" + n, Name: n})
	}
	return out
}

func names(entries []pathscan.SourceFolderEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestPlan(t *testing.T) {
	all := folders("visit1", "visit2", "P001")

	t.Run("preserve deletes nothing", func(t *testing.T) {
		if got := Plan(all, map[string]struct{}{"P001": {}}, true); len(got) != 0 {
			t.Errorf("expected empty plan, got %v", names(got))
		}
	})

	t.Run("protected subjects survive", func(t *testing.T) {
		got := Plan(all, map[string]struct{}{"P001": {}}, false)
		if len(got) != 2 {
			t.Fatalf("expected 2 folders, got %v", names(got))
		}
		for _, f := range got {
			if f.Name == "P001" {
				t.Error("protected folder P001 must not be planned for deletion")
			}
		}
	})

	t.Run("nothing already sorted deletes all", func(t *testing.T) {
		if got := Plan(all, nil, false); len(got) != 3 {
			t.Errorf("expected all 3 folders, got %v", names(got))
		}
	})
}

func TestDelete(t *testing.T) {
	root := t.TempDir()

	var entries []pathscan.SourceFolderEntry
	for _, n := range []string{"visit1", "visit2"} {
		dir := filepath.Join(root, n)
		if err := os.MkdirAll(filepath.Join(dir, "nested"), 0755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		entries = append(entries, pathscan.SourceFolderEntry{Path: dir, Name: n})
	}
	// A folder that no longer exists is reported as deleted, not failed: the
	// desired end state is already reached.
	entries = append(entries, pathscan.SourceFolderEntry{Path: filepath.Join(root, "ghost"), Name: "ghost"})

	report := NewDeleter(2, false).Delete(context.Background(), entries)

	if len(report.Deleted) != 3 {
		t.Errorf("Deleted = %v, want 3 entries", report.Deleted)
	}
	if len(report.Failed) != 0 {
		t.Errorf("Failed = %v, want none", report.Failed)
	}
	for _, n := range []string{"visit1", "visit2"} {
		if _, err := os.Stat(filepath.Join(root, n)); !os.IsNotExist(err) {
			t.Errorf("folder %s should be gone", n)
		}
	}
}

func TestDeleteDryRun(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "visit1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	report := NewDeleter(2, true).Delete(context.Background(), folders("visit1"))

	if len(report.Deleted) != 1 {
		t.Errorf("dry run should report would-be deletions, got %v", report.Deleted)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("dry run must not delete anything: %v", err)
	}
}

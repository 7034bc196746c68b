package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckStudyAccessible(t *testing.T) {
	t.Run("Happy Path - Study is a directory", func(t *testing.T) {
		if err := CheckStudyAccessible(t.TempDir()); err != nil {
			t.Errorf("expected no error for existing directory, but got: %v", err)
		}
	})

	t.Run("Error - Study does not exist", func(t *testing.T) {
		err := CheckStudyAccessible(filepath.Join(t.TempDir(), "nonexistent"))
		if err == nil {
			t.Fatal("expected an error for non-existent study, but got nil")
		}
		if !strings.Contains(err.Error(), "does not exist") {
			t.Errorf("expected a does-not-exist error, but got: %v", err)
		}
	})

	t.Run("Error - Study is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "scan.dcm")
		if err := os.WriteFile(file, []byte("not a directory"), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		err := CheckStudyAccessible(file)
		if err == nil {
			t.Fatal("expected an error when study is a file, but got nil")
		}
		if !strings.Contains(err.Error(), "is not a directory") {
			t.Errorf("expected error to be about 'not a directory', but got: %v", err)
		}
	})
}

func TestCheckOutputTargetAccessible(t *testing.T) {
	t.Run("Happy Path - Target Exists", func(t *testing.T) {
		if err := CheckOutputTargetAccessible(t.TempDir()); err != nil {
			t.Errorf("expected no error for existing directory, but got: %v", err)
		}
	})

	t.Run("Happy Path - Target Does Not Exist, Parent Exists", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "sorted")
		if err := CheckOutputTargetAccessible(target); err != nil {
			t.Errorf("expected no error when parent exists, but got: %v", err)
		}
	})

	t.Run("Error - Target Is a File", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "target.txt")
		if err := os.WriteFile(target, []byte("i am a file"), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		err := CheckOutputTargetAccessible(target)
		if err == nil {
			t.Fatal("expected an error when target is a file, but got nil")
		}
		if !strings.Contains(err.Error(), "is not a directory") {
			t.Errorf("expected error to be about 'not a directory', but got: %v", err)
		}
	})
}

func TestCheckOutputTargetWritable(t *testing.T) {
	target := filepath.Join(t.TempDir(), "new", "sorted")
	if err := CheckOutputTargetWritable(target); err != nil {
		t.Fatalf("expected writable target, got: %v", err)
	}

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected target directory to be created, got: %v", err)
	}

	// The write-test file must not survive the check.
	entries, err := os.ReadDir(target)
	if err != nil {
		t.Fatalf("failed to read target dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty target dir, found %d entries", len(entries))
	}
}

// Package preflight provides validation checks that run before a sort begins.
// The checks are designed to fail fast with user-friendly errors instead of
// letting the engine die halfway through on an os.MkdirAll or os.Rename.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckStudyAccessible validates that the study path exists and is a directory.
func CheckStudyAccessible(studyPath string) error {
	info, err := os.Stat(studyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("study directory %s does not exist", studyPath)
		}
		return fmt.Errorf("cannot stat study directory %s: %w", studyPath, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("study path %s is not a directory", studyPath)
	}

	return nil
}

// CheckOutputTargetAccessible performs pre-flight checks to ensure the output
// target is usable. It provides more user-friendly errors than letting
// os.MkdirAll fail.
//
// The checks include:
//  1. If the target path exists, confirms it is a directory.
//  2. If the target path does not exist, confirms its parent directory is accessible.
//  3. On Unix, verifies the deepest existing ancestor is not a "ghost" directory
//     on the root filesystem left behind by an unmounted drive.
func CheckOutputTargetAccessible(targetPath string) error {
	info, err := os.Stat(targetPath)
	if os.IsNotExist(err) {
		// Target doesn't exist. Find the deepest existing ancestor and
		// validate that instead: if /mnt/sorted/study1 doesn't exist,
		// is /mnt/sorted mounted?
		ancestor := targetPath
		for {
			parent := filepath.Dir(ancestor)
			if parent == ancestor {
				break // Hit root
			}
			if _, err := os.Stat(parent); err == nil {
				ancestor = parent
				break
			}
			ancestor = parent
		}

		if err := validateMountPoint(ancestor); err != nil {
			return err
		}

		// Ensure the immediate parent is accessible so MkdirAll won't fail
		// due to permissions on the parent.
		parentDir := filepath.Dir(targetPath)
		if _, err := os.Stat(parentDir); os.IsNotExist(err) {
			return fmt.Errorf("output path and its parent directory do not exist: %s", parentDir)
		} else if err != nil {
			return fmt.Errorf("cannot access parent directory %s: %w", parentDir, err)
		}

		return nil
	} else if err != nil {
		return fmt.Errorf("cannot access output path: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("output path exists but is not a directory: %s", targetPath)
	}

	return validateMountPoint(targetPath)
}

// CheckOutputTargetWritable ensures the output directory can be created and is
// writable by performing filesystem modifications. Callers must skip this
// check on dry runs.
func CheckOutputTargetWritable(targetPath string) error {
	if err := os.MkdirAll(targetPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", targetPath, err)
	}

	// Perform a thorough write check by creating and deleting a temporary file.
	tempFile := filepath.Join(targetPath, ".dicomsort-writetest.tmp")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", targetPath, err)
	}
	f.Close()
	_ = os.Remove(tempFile)
	return nil
}

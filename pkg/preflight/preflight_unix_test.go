//go:build !windows

package preflight

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateMountPoint(t *testing.T) {
	t.Run("Happy Path - Root filesystem path is accepted", func(t *testing.T) {
		// /var exists on every Unix system and sits outside the home and
		// temp exemptions, so this drives the device-comparison branch.
		// Living on the system disk must warn at most, never fail.
		if err := validateMountPoint("/var"); err != nil {
			t.Errorf("expected no error for existing root-filesystem path, but got: %v", err)
		}
	})

	t.Run("Happy Path - Root itself is accepted", func(t *testing.T) {
		if err := validateMountPoint("/"); err != nil {
			t.Errorf("expected no error for /, but got: %v", err)
		}
	})

	t.Run("Error - Unstattable path", func(t *testing.T) {
		err := validateMountPoint(filepath.Join("/var", "dicomsort-nonexistent-mount-check"))
		if err == nil {
			t.Fatal("expected an error for a nonexistent path, but got nil")
		}
		if !strings.Contains(err.Error(), "failed to stat output path") {
			t.Errorf("expected a stat error, but got: %v", err)
		}
	})
}

func TestCheckOutputTargetAccessibleOnRootFilesystem(t *testing.T) {
	// An existing, writable directory on the system disk is a valid output
	// target. Preflight may only reject missing or inaccessible paths.
	if err := CheckOutputTargetAccessible("/var"); err != nil {
		t.Errorf("expected no error for existing directory on root filesystem, but got: %v", err)
	}
}

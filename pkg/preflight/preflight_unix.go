//go:build !windows

package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/scanwell-labs/dicomsort/pkg/plog"
)

// validateMountPoint checks whether the path resides on the root filesystem.
// Sorted studies often live on dedicated data volumes; a target that silently
// resolves to the system disk can mean the volume is not mounted and the path
// is a leftover "ghost" directory. That situation is only suspicious, not
// provably wrong (single-disk hosts sort to the root filesystem all the
// time), so it is surfaced as a warning. Only an unstattable path aborts.
func validateMountPoint(path string) error {
	// Sorting into the user's home directory is usually intentional.
	homeDir, _ := os.UserHomeDir()
	if homeDir != "" && strings.HasPrefix(path, homeDir) {
		return nil
	}

	// Sorting under common scratch locations is also fine (tests, CI).
	if strings.HasPrefix(path, os.TempDir()) {
		return nil
	}

	var rootStat unix.Stat_t
	if err := unix.Stat("/", &rootStat); err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}

	var pathStat unix.Stat_t
	if err := unix.Stat(path, &pathStat); err != nil {
		return fmt.Errorf("failed to stat output path %s: %w", path, err)
	}

	if pathStat.Dev == rootStat.Dev && path != "/" {
		plog.Warn("Output path is on the root filesystem (system disk). "+
			"If you expected a dedicated data volume, ensure it is mounted", "path", path)
	}

	return nil
}

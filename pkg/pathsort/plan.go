package pathsort

import (
	"github.com/scanwell-labs/dicomsort/pkg/dicommeta"
	"github.com/scanwell-labs/dicomsort/pkg/resolve"
)

// Plan carries everything one sort phase needs. It is assembled by the engine
// and treated as read-only by the sorter.
type Plan struct {
	Mode   Mode
	DryRun bool

	// Policy resolves metadata to destination folders.
	Policy *resolve.Policy
	// Reader extracts per-file metadata. Must be safe for concurrent use.
	Reader dicommeta.Reader

	Workers      int
	BufferSizeKB int

	Metrics Metrics
}

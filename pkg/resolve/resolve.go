// Package resolve maps file metadata to its destination folder. Resolution is
// a pure function of the policy and the metadata, so concurrent sort tasks
// always agree on the destination of files that belong together.
package resolve

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/scanwell-labs/dicomsort/pkg/dicommeta"
)

// Policy holds the naming rules for one run. It is immutable after creation
// and shared read-only by all sort tasks.
type Policy struct {
	// OutputRoot is the destination root directory (OS-native path).
	OutputRoot string
	// Prefix and Suffix decorate the subject identifier.
	Prefix string
	Suffix string
	// ForbiddenChars are replaced with '_' in directory names. Path
	// separators are always replaced regardless of this setting.
	ForbiddenChars string
}

// Resolve returns the destination folder for a file with the given metadata:
// outputRoot/<prefix+subject+suffix>/<NN_Protocol>.
//
// Identical inputs always yield the identical key, independent of call order.
func (p *Policy) Resolve(meta dicommeta.Metadata) string {
	subjectDir := p.sanitize(p.Prefix + meta.SubjectID + p.Suffix)

	var seriesDir string
	if meta.ProtocolName == "" {
		seriesDir = fmt.Sprintf("%02d", meta.SeriesNumber)
	} else {
		seriesDir = fmt.Sprintf("%02d_%s", meta.SeriesNumber, p.sanitize(meta.ProtocolName))
	}

	return filepath.Join(p.OutputRoot, subjectDir, seriesDir)
}

// SubjectDirName returns the directory name a subject resolves to, without
// the series component. Cleanup uses it to match source folder names against
// protected subjects.
func (p *Policy) SubjectDirName(subjectID string) string {
	return p.sanitize(p.Prefix + subjectID + p.Suffix)
}

func (p *Policy) sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || strings.ContainsRune(p.ForbiddenChars, r) {
			return '_'
		}
		return r
	}, name)
}

// Package pathscan discovers the raw contents of a study directory and
// partitions them into sortable candidate files and top-level source folders.
// Discovery is the only I/O; the partition itself is a pure filter so it can
// be tested without a filesystem.
package pathscan

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/scanwell-labs/dicomsort/pkg/util"
)

// Entry is one filesystem object found under the study root.
type Entry struct {
	// Path is the OS-native absolute path.
	Path string
	// RelPath is the normalized path relative to the study root.
	RelPath string
	IsDir   bool
}

// CandidateFile is a regular file eligible for sorting.
type CandidateFile struct {
	Path    string
	RelPath string
}

// SourceFolderEntry is a directory that is a direct child of the study root.
// These are the cleanup and compression units of a run.
type SourceFolderEntry struct {
	Path string
	// Name is the bare directory name, used for the do-not-delete match
	// against subject identifiers.
	Name string
}

// Listing is the partition of a scan into the two sets the engine works on.
type Listing struct {
	Candidates    []CandidateFile
	SourceFolders []SourceFolderEntry
}

// Scan walks the study root recursively and returns every entry found below
// it. The root itself is not included. The walk honors context cancellation
// between directory entries.
func Scan(ctx context.Context, root string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access %s: %w", path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		relPath, relErr := util.NormalizedRelPath(root, path)
		if relErr != nil {
			return relErr
		}

		entries = append(entries, Entry{
			Path:    path,
			RelPath: relPath,
			IsDir:   d.IsDir(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Partition splits raw scan entries into candidate files and source folders.
//
// Rules:
//   - Any entry whose name begins with '.' is excluded from both sets, as is
//     anything below such a directory.
//   - Regular files at any depth become candidates.
//   - Directories that are direct children of the root become source folders.
func Partition(entries []Entry) Listing {
	var listing Listing

	for _, e := range entries {
		if isHidden(e.RelPath) {
			continue
		}

		if e.IsDir {
			if !strings.Contains(e.RelPath, "/") {
				listing.SourceFolders = append(listing.SourceFolders, SourceFolderEntry{
					Path: e.Path,
					Name: filepath.Base(e.Path),
				})
			}
			continue
		}

		listing.Candidates = append(listing.Candidates, CandidateFile{
			Path:    e.Path,
			RelPath: e.RelPath,
		})
	}

	return listing
}

// isHidden reports whether any segment of the normalized relative path starts
// with a dot. A hidden directory hides its entire subtree.
func isHidden(relPath string) bool {
	for _, segment := range strings.Split(relPath, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

package pathcompression

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/scanwell-labs/dicomsort/pkg/plog"
	"github.com/scanwell-labs/dicomsort/pkg/util"
)

// compressor writes the contents of a directory into an open archive file.
// The surrounding temp-file and rename dance is handled by the Archiver.
type compressor interface {
	compress(ctx context.Context, sourceDir string, out *os.File) error
}

// secureFileOpen verifies that the file at path is the same one discovered in
// the walk (TOCTOU check). Archive headers are computed from the walk's
// FileInfo; a file swapped or resized in between would corrupt the archive.
func secureFileOpen(absFilePath string, expected os.FileInfo) (*os.File, error) {
	f, err := os.Open(absFilePath)
	if err != nil {
		return nil, err
	}

	openedInfo, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat opened file: %w", err)
	}

	if !os.SameFile(expected, openedInfo) {
		f.Close()
		return nil, fmt.Errorf("file changed during compression (TOCTOU): %s", absFilePath)
	}
	if openedInfo.Size() != expected.Size() {
		f.Close()
		return nil, fmt.Errorf("file size changed during compression: %s", absFilePath)
	}

	return f, nil
}

// walkFiles calls fn for every regular file below sourceDir with its
// normalized relative path. Symlinks are skipped: a sorted study tree has no
// business containing them, and archiving their targets could duplicate data.
func walkFiles(ctx context.Context, sourceDir string, fn func(absPath, relPathKey string, info os.FileInfo) error) error {
	return filepath.WalkDir(sourceDir, func(absPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", absPath, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			plog.Debug("Skipping symlink during compression", "path", absPath)
			return nil
		}

		relPathKey, err := util.NormalizedRelPath(sourceDir, absPath)
		if err != nil {
			return err
		}

		return fn(absPath, relPathKey, info)
	})
}

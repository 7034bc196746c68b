package pathsort

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/scanwell-labs/dicomsort/pkg/pathscan"
	"github.com/scanwell-labs/dicomsort/pkg/plog"
	"github.com/scanwell-labs/dicomsort/pkg/util"
)

// canonicalExt is appended to destination file names that carry no extension,
// so the sorted tree is uniformly browsable by DICOM viewers.
const canonicalExt = ".dcm"

// process classifies and places one candidate file. It is the unit of work of
// a sort worker: independent of every other candidate, blocking only on its
// own file's I/O.
func (s *Sorter) process(file pathscan.CandidateFile) Result {
	meta, err := s.plan.Reader.Read(file.Path)
	if err != nil {
		return Result{File: file, Outcome: OutcomeReadFailed, Err: err}
	}

	destKey := s.plan.Policy.Resolve(meta)

	// A file already below its resolved destination folder was placed by a
	// previous run. Touching it again would be wasted I/O at best.
	if isUnder(destKey, file.Path) {
		return Result{File: file, Outcome: OutcomeAlreadySorted, SubjectID: meta.SubjectID, DestKey: destKey}
	}

	if err := s.ensureDestDirExists(destKey); err != nil {
		return Result{File: file, Outcome: OutcomeRelocateFailed, SubjectID: meta.SubjectID, DestKey: destKey, Err: err}
	}

	destPath := filepath.Join(destKey, canonicalBaseName(file.Path))
	if err := s.place(file.Path, destPath); err != nil {
		return Result{File: file, Outcome: OutcomeRelocateFailed, SubjectID: meta.SubjectID, DestKey: destKey, Err: err}
	}

	return Result{File: file, Outcome: OutcomeRelocated, SubjectID: meta.SubjectID, DestKey: destKey}
}

// isUnder reports whether path lives at or below dir.
func isUnder(dir, path string) bool {
	rel, err := filepath.Rel(dir, filepath.Dir(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func canonicalBaseName(path string) string {
	base := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(base), canonicalExt) {
		base += canonicalExt
	}
	return base
}

// ensureDestDirExists creates the destination folder once per run.
//
// Many workers resolve files of the same series concurrently, so the first
// hit goes through singleflight: only one worker executes the MkdirAll for a
// given path, the others block on its result. Subsequent hits are answered by
// the cache without any I/O.
func (s *Sorter) ensureDestDirExists(destKey string) error {
	if s.createdDirCache.Has(destKey) {
		return nil
	}

	_, err, _ := s.dirSFGroup.Do(destKey, func() (any, error) {
		// Double-check now that we are the chosen worker for this path.
		if s.createdDirCache.Has(destKey) {
			return nil, nil
		}

		if s.plan.DryRun {
			// Atomically update the cache to ensure we only log once per directory.
			if loaded := s.createdDirCache.LoadOrStore(destKey); !loaded {
				plog.Notice("[DRY RUN] DIR", "path", destKey)
			}
			return nil, nil
		}

		if err := os.MkdirAll(destKey, util.WithUserWritePermission(util.UserWritableDirPerms)); err != nil {
			return nil, fmt.Errorf("failed to create destination directory %s: %w", destKey, err)
		}

		s.metrics.AddDirsCreated(1)
		s.createdDirCache.Store(destKey)
		return nil, nil
	})
	return err
}

// place moves or copies src to dst according to the plan's mode. An existing
// dst is a collision: place refuses to overwrite and reports an error, since
// two distinct source files that map to the same destination name cannot both
// be canonical.
func (s *Sorter) place(src, dst string) error {
	// Claim the destination name first. Two workers can resolve distinct
	// sources to the same name in the same run; the Lstat below would let
	// both pass and the second rename would silently overwrite the first.
	if loaded := s.claimedDest.LoadOrStore(dst); loaded {
		return fmt.Errorf("destination %s already claimed by another file in this run", dst)
	}

	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("destination %s already exists, refusing to overwrite", dst)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot stat destination %s: %w", dst, err)
	}

	if s.plan.DryRun {
		plog.Notice("[DRY RUN] "+strings.ToUpper(s.plan.Mode.String()), "from", src, "to", dst)
		return nil
	}

	switch s.plan.Mode {
	case ModeMove:
		if err := os.Rename(src, dst); err == nil {
			return nil
		}
		// Rename fails across filesystems. Fall back to copy-and-delete.
		if err := s.copyFileSafe(src, dst); err != nil {
			return err
		}
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("copied %s but failed to remove source: %w", src, err)
		}
		return nil
	case ModeCopy:
		return s.copyFileSafe(src, dst)
	default:
		return fmt.Errorf("unknown relocation mode: %s", s.plan.Mode)
	}
}

// copyFileSafe copies src to dst via a temporary file in the destination
// directory followed by an atomic rename, so a crash mid-copy never leaves a
// half-written file under a canonical name.
func (s *Sorter) copyFileSafe(src, dst string) (err error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %w", src, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer in.Close()

	dstDir := filepath.Dir(dst)
	out, err := os.CreateTemp(dstDir, "dicomsort-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dstDir, err)
	}
	defer out.Close() // Ensure closed on error.

	tempPath := out.Name()
	// If the rename succeeds, tempPath is cleared and this becomes a no-op.
	defer func() {
		if tempPath != "" {
			os.Remove(tempPath)
		}
	}()

	// Pre-allocate to reduce fragmentation.
	if srcInfo.Size() > 0 {
		_ = out.Truncate(srcInfo.Size())
	}

	bufPtr := s.ioBufferPool.Get().(*[]byte)
	defer s.ioBufferPool.Put(bufPtr)
	buf := *bufPtr
	// Always reset len to cap before use for io.CopyBuffer.
	buf = buf[:cap(buf)]

	bytesWritten, err := io.CopyBuffer(out, in, buf)
	if err != nil {
		return fmt.Errorf("failed to copy content from %s to %s: %w", src, tempPath, err)
	}
	s.metrics.AddBytesWritten(bytesWritten)

	// The user must always keep write permission on the destination file to
	// prevent being locked out on subsequent runs (e.g. a read-only export).
	if err := out.Chmod(util.WithUserWritePermission(srcInfo.Mode())); err != nil {
		return fmt.Errorf("failed to set permissions on temporary file %s: %w", tempPath, err)
	}

	// Close flushes to disk. It must happen before Chtimes, because closing
	// may update the modification time.
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file %s: %w", tempPath, err)
	}

	if err := os.Chtimes(tempPath, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return fmt.Errorf("failed to set timestamps on %s: %w", tempPath, err)
	}

	// os.Rename is atomic on POSIX and uses MoveFileEx with
	// MOVEFILE_REPLACE_EXISTING on Windows.
	if err := os.Rename(tempPath, dst); err != nil {
		return fmt.Errorf("failed to move temporary file to %s: %w", dst, err)
	}

	tempPath = ""
	return nil
}

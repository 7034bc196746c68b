// Package pathcompression replaces surviving source folders with archives.
// One archive per folder, built next to it via a temporary file and an atomic
// rename; the folder itself is only removed after its archive is safely in
// place.
package pathcompression

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/scanwell-labs/dicomsort/pkg/hints"
	"github.com/scanwell-labs/dicomsort/pkg/pathscan"
	"github.com/scanwell-labs/dicomsort/pkg/plog"
)

const defaultBufferSizeKB = 256

// tempPattern names in-progress archives. Stale ones from interrupted runs
// are swept before compression starts.
const tempPattern = "dicomsort-*.tmp"

// Plan carries the compression settings for one run.
type Plan struct {
	Format Format
	Level  Level
	DryRun bool

	Workers      int
	BufferSizeKB int
}

// Report lists what the archiver did.
type Report struct {
	Compressed []string
	// Failed maps folder paths to their compression errors. A failed folder
	// is left in place, uncompressed and intact.
	Failed map[string]error
}

// Archiver compresses folders concurrently according to its plan.
type Archiver struct {
	plan         *Plan
	compressor   compressor
	ioBufferPool *sync.Pool
}

func NewArchiver(plan *Plan) (*Archiver, error) {
	bufferSizeKB := plan.BufferSizeKB
	if bufferSizeKB <= 0 {
		bufferSizeKB = defaultBufferSizeKB
	}
	bufferSize := bufferSizeKB * 1024

	ioBufferPool := &sync.Pool{
		New: func() any {
			buf := make([]byte, bufferSize)
			return &buf
		},
	}

	var c compressor
	switch plan.Format {
	case Zip:
		c = newZipCompressor(plan.Level, ioBufferPool, bufferSize)
	case Tar, Gzip:
		c = newTarCompressor(plan.Format, plan.Level, ioBufferPool, bufferSize)
	case None:
		return nil, fmt.Errorf("archiver created with format 'none'")
	default:
		return nil, fmt.Errorf("unsupported compression format: %s", plan.Format)
	}

	return &Archiver{
		plan:         plan,
		compressor:   c,
		ioBufferPool: ioBufferPool,
	}, nil
}

type compressResult struct {
	path string
	err  error
}

// Run compresses every folder and reports per-folder results. A failed folder
// never aborts the compression of the rest.
func (a *Archiver) Run(ctx context.Context, folders []pathscan.SourceFolderEntry) *Report {
	report := &Report{Failed: make(map[string]error)}
	if len(folders) == 0 {
		return report
	}

	workers := a.plan.Workers
	if workers < 1 {
		workers = 1
	}

	// Sweep before any worker starts: workers for sibling folders share the
	// parent directory, and a mid-run sweep would eat their live temp files.
	if !a.plan.DryRun {
		swept := make(map[string]struct{})
		for _, folder := range folders {
			dir := filepath.Dir(folder.Path)
			if _, done := swept[dir]; done {
				continue
			}
			sweepStaleTemps(dir)
			swept[dir] = struct{}{}
		}
	}

	items := make(chan pathscan.SourceFolderEntry, len(folders))
	results := make(chan compressResult, len(folders))

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			if res.err != nil {
				// A hint means there was nothing to compress. The folder is
				// left in place and not counted either way.
				if hints.IsHint(res.err) {
					plog.Info("Skipping compression", "path", res.path, "reason", res.err)
					continue
				}
				report.Failed[res.path] = res.err
				plog.Warn("Failed to compress source folder", "path", res.path, "error", res.err)
				continue
			}
			report.Compressed = append(report.Compressed, res.path)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for folder := range items {
				results <- compressResult{path: folder.Path, err: a.compressFolder(ctx, folder)}
			}
		}()
	}

	go func() {
		defer close(items)
		for _, folder := range folders {
			select {
			case <-ctx.Done():
				return
			case items <- folder:
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	return report
}

// compressFolder archives one folder and removes the original on success.
func (a *Archiver) compressFolder(ctx context.Context, folder pathscan.SourceFolderEntry) (retErr error) {
	archivePath := folder.Path + a.plan.Format.Ext()

	if a.plan.DryRun {
		plog.Notice("[DRY RUN] COMPRESS", "source", folder.Path, "archive", archivePath)
		return nil
	}

	plog.Notice("COMPRESS", "source", folder.Path, "archive", archivePath)

	if _, err := os.Lstat(archivePath); err == nil {
		return fmt.Errorf("archive %s already exists, refusing to overwrite", archivePath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot stat archive path %s: %w", archivePath, err)
	}

	hasFiles, err := folderHasFiles(ctx, folder.Path)
	if err != nil {
		return err
	}
	if !hasFiles {
		return hints.New("folder contains no files, nothing to compress")
	}

	out, err := os.CreateTemp(filepath.Dir(archivePath), tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempPath := out.Name()

	defer func() {
		if retErr != nil {
			out.Close()
			os.Remove(tempPath)
		}
	}()

	if err := a.compressor.compress(ctx, folder.Path, out); err != nil {
		return err
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close temp archive: %w", err)
	}

	// os.Rename is atomic on POSIX, so the final archive name never refers to
	// a partially written file.
	if err := os.Rename(tempPath, archivePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}

	// The original folder is only removed once its archive is in place. A
	// failure here leaves both folder and archive; the next run will refuse
	// to overwrite the archive and flag the folder for attention.
	if err := os.RemoveAll(folder.Path); err != nil {
		return fmt.Errorf("archived %s but failed to remove original folder: %w", folder.Path, err)
	}

	return nil
}

var errFoundFile = errors.New("found file")

// folderHasFiles reports whether dir contains at least one regular file. An
// empty folder would only produce an empty archive in exchange for deleting
// the folder itself.
func folderHasFiles(ctx context.Context, dir string) (bool, error) {
	err := walkFiles(ctx, dir, func(string, string, os.FileInfo) error {
		return errFoundFile
	})
	if errors.Is(err, errFoundFile) {
		return true, nil
	}
	return false, err
}

// sweepStaleTemps removes leftover temp archives from interrupted runs.
func sweepStaleTemps(dir string) {
	matches, err := filepath.Glob(filepath.Join(dir, tempPattern))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			plog.Debug("Removed stale temp archive", "path", m)
		}
	}
}

// Package engine orchestrates a full sort run: preflight, discovery, the
// parallel sort phase, cleanup of drained source folders, optional
// compression, and the persisted run record.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scanwell-labs/dicomsort/pkg/buildinfo"
	"github.com/scanwell-labs/dicomsort/pkg/config"
	"github.com/scanwell-labs/dicomsort/pkg/dicommeta"
	"github.com/scanwell-labs/dicomsort/pkg/metafile"
	"github.com/scanwell-labs/dicomsort/pkg/pathcleanup"
	"github.com/scanwell-labs/dicomsort/pkg/pathcompression"
	"github.com/scanwell-labs/dicomsort/pkg/pathscan"
	"github.com/scanwell-labs/dicomsort/pkg/pathsort"
	"github.com/scanwell-labs/dicomsort/pkg/plog"
	"github.com/scanwell-labs/dicomsort/pkg/preflight"
	"github.com/scanwell-labs/dicomsort/pkg/resolve"
)

const progressInterval = 5 * time.Second

// Runner executes sort runs for one validated configuration.
type Runner struct {
	cfg    config.Config
	reader dicommeta.Reader
}

// NewRunner creates a Runner. The reader is injected so tests can substitute
// the DICOM parser.
func NewRunner(cfg config.Config, reader dicommeta.Reader) *Runner {
	return &Runner{cfg: cfg, reader: reader}
}

// ExecuteSort runs the full pipeline. Per-file and per-folder failures are
// recovered and reported; only configuration and preflight problems, scan
// failures and cancellation abort the run.
func (r *Runner) ExecuteSort(ctx context.Context) error {
	mode, err := pathsort.ParseMode(r.cfg.Mode)
	if err != nil {
		return err
	}
	format, err := pathcompression.ParseFormat(r.cfg.Compression.Format)
	if err != nil {
		return err
	}
	level, err := pathcompression.ParseLevel(r.cfg.Compression.Level)
	if err != nil {
		return err
	}

	outputRoot := r.cfg.OutputPath
	inPlace := outputRoot == ""
	if inPlace {
		outputRoot = r.cfg.StudyPath
	}

	// --- 1. Preflight ---
	if err := preflight.CheckStudyAccessible(r.cfg.StudyPath); err != nil {
		return err
	}
	if !inPlace {
		if err := preflight.CheckOutputTargetAccessible(outputRoot); err != nil {
			return err
		}
		if !r.cfg.Runtime.DryRun {
			if err := preflight.CheckOutputTargetWritable(outputRoot); err != nil {
				return err
			}
		}
	}

	// --- 2. Discovery ---
	plog.Info("Scanning study directory", "path", r.cfg.StudyPath)
	entries, err := pathscan.Scan(ctx, r.cfg.StudyPath)
	if err != nil {
		return fmt.Errorf("study scan failed: %w", err)
	}
	listing := pathscan.Partition(entries)
	plog.Info("Scan complete",
		"candidate_files", len(listing.Candidates),
		"source_folders", len(listing.SourceFolders))

	// --- 3. Sort phase ---
	var metrics pathsort.Metrics = &pathsort.NoopMetrics{}
	if r.cfg.Engine.Metrics {
		metrics = &pathsort.SortMetrics{}
	}

	policy := &resolve.Policy{
		OutputRoot:     outputRoot,
		Prefix:         r.cfg.Naming.Prefix,
		Suffix:         r.cfg.Naming.Suffix,
		ForbiddenChars: r.cfg.Naming.ForbiddenChars,
	}

	sorter := pathsort.NewSorter(&pathsort.Plan{
		Mode:         mode,
		DryRun:       r.cfg.Runtime.DryRun,
		Policy:       policy,
		Reader:       r.reader,
		Workers:      r.cfg.Engine.Performance.SortWorkers,
		BufferSizeKB: r.cfg.Engine.Performance.BufferSizeKB,
		Metrics:      metrics,
	})

	plog.Notice("SORT", "study", r.cfg.StudyPath, "output", outputRoot, "mode", mode.String())
	metrics.StartProgress("Sort in progress", progressInterval)
	sortReport, sortErr := sorter.Run(ctx, listing.Candidates)
	metrics.StopProgress()
	if sortErr != nil {
		return fmt.Errorf("sort aborted: %w", sortErr)
	}
	metrics.LogSummary("Sort phase finished")

	// --- 4. Cleanup phase ---
	// Protect folders whose name matches an already-sorted subject, both in
	// its raw form and as the decorated directory name it resolves to.
	doNotDelete := make(map[string]struct{}, len(sortReport.AlreadySortedSubjects)*2)
	for subjectID := range sortReport.AlreadySortedSubjects {
		doNotDelete[subjectID] = struct{}{}
		doNotDelete[policy.SubjectDirName(subjectID)] = struct{}{}
	}

	toDelete := pathcleanup.Plan(listing.SourceFolders, doNotDelete, r.cfg.Preserve)
	deleter := pathcleanup.NewDeleter(r.cfg.Engine.Performance.DeleteWorkers, r.cfg.Runtime.DryRun)
	cleanupReport := deleter.Delete(ctx, toDelete)

	// --- 5. Compression phase ---
	survivors := survivingFolders(listing.SourceFolders, cleanupReport, doNotDelete)
	var compressReport *pathcompression.Report
	if format != pathcompression.None && len(survivors) > 0 {
		archiver, err := pathcompression.NewArchiver(&pathcompression.Plan{
			Format:       format,
			Level:        level,
			DryRun:       r.cfg.Runtime.DryRun,
			Workers:      r.cfg.Engine.Performance.CompressWorkers,
			BufferSizeKB: r.cfg.Engine.Performance.BufferSizeKB,
		})
		if err != nil {
			return err
		}
		compressReport = archiver.Run(ctx, survivors)
	}

	// --- 6. Run record ---
	preserved := len(listing.SourceFolders) - len(cleanupReport.Deleted)
	record := &metafile.MetafileContent{
		Version:      buildinfo.Version,
		UUID:         uuid.NewString(),
		TimestampUTC: time.Now().UTC(),

		StudyPath:  r.cfg.StudyPath,
		OutputPath: r.cfg.OutputPath,
		Mode:       mode.String(),
		Preserve:   r.cfg.Preserve,
		DryRun:     r.cfg.Runtime.DryRun,

		FilesRelocated:      sortReport.Relocated,
		FilesAlreadySorted:  sortReport.AlreadySorted,
		FilesReadFailed:     sortReport.ReadFailed,
		FilesRelocateFailed: sortReport.RelocateFailed,

		FoldersDeleted:   len(cleanupReport.Deleted),
		FoldersPreserved: preserved,
	}
	if compressReport != nil {
		record.FoldersCompressed = len(compressReport.Compressed)
		record.CompressionFormat = format.String()
	}
	if !r.cfg.Runtime.DryRun {
		if err := metafile.Write(outputRoot, record); err != nil {
			// The sort itself succeeded; a missing run record is not worth
			// failing the whole run over.
			plog.Warn("Failed to write run record", "error", err)
		}
	}

	// --- 7. Summary ---
	r.logSummary(record, cleanupReport, compressReport)

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// survivingFolders returns the source folders still present after cleanup,
// minus protected subject folders: those may hold canonical output and must
// never be folded into an archive.
func survivingFolders(all []pathscan.SourceFolderEntry, cleanup *pathcleanup.Report, doNotDelete map[string]struct{}) []pathscan.SourceFolderEntry {
	deleted := make(map[string]struct{}, len(cleanup.Deleted))
	for _, p := range cleanup.Deleted {
		deleted[p] = struct{}{}
	}

	var survivors []pathscan.SourceFolderEntry
	for _, folder := range all {
		if _, gone := deleted[folder.Path]; gone {
			continue
		}
		if _, protected := doNotDelete[folder.Name]; protected {
			continue
		}
		survivors = append(survivors, folder)
	}
	return survivors
}

func (r *Runner) logSummary(record *metafile.MetafileContent, cleanup *pathcleanup.Report, compress *pathcompression.Report) {
	logArgs := []interface{}{
		"files_relocated", record.FilesRelocated,
		"files_already_sorted", record.FilesAlreadySorted,
		"files_read_failed", record.FilesReadFailed,
		"files_relocate_failed", record.FilesRelocateFailed,
		"folders_deleted", record.FoldersDeleted,
		"folders_preserved", record.FoldersPreserved,
	}
	if compress != nil {
		logArgs = append(logArgs, "folders_compressed", len(compress.Compressed))
	}
	plog.Notice("Sort completed", logArgs...)

	for _, path := range cleanup.Deleted {
		plog.Info("Deleted source folder", "path", path)
	}
	for path, err := range cleanup.Failed {
		plog.Warn("Cleanup failed for folder", "path", path, "error", err)
	}
	if compress != nil {
		for path, err := range compress.Failed {
			plog.Warn("Compression failed for folder", "path", path, "error", err)
		}
	}
}

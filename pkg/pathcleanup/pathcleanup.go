// Package pathcleanup deletes source folders that the sort has fully drained.
// Planning is a pure function separated from deletion, so the safety rules can
// be tested without touching a filesystem.
package pathcleanup

import (
	"context"
	"os"
	"sync"

	"github.com/scanwell-labs/dicomsort/pkg/hints"
	"github.com/scanwell-labs/dicomsort/pkg/pathscan"
	"github.com/scanwell-labs/dicomsort/pkg/plog"
)

// Plan returns the source folders that are safe to delete.
//
// Rules:
//   - preserve=true: nothing is deleted. This is the default and always safe.
//   - A folder whose name is in the doNotDelete set is protected: the name
//     matches a subject recorded as already sorted during this run, so the
//     folder may hold canonical output of a previous run.
//   - Everything else is stale input that has been fully relocated.
func Plan(sourceFolders []pathscan.SourceFolderEntry, doNotDelete map[string]struct{}, preserve bool) []pathscan.SourceFolderEntry {
	if preserve {
		return nil
	}

	var toDelete []pathscan.SourceFolderEntry
	for _, folder := range sourceFolders {
		if _, protected := doNotDelete[folder.Name]; protected {
			continue
		}
		toDelete = append(toDelete, folder)
	}
	return toDelete
}

// Report lists what the deleter did.
type Report struct {
	Deleted []string
	// Failed maps folder paths to their deletion errors. A failed folder
	// never aborts the cleanup of the rest.
	Failed map[string]error
}

// Deleter removes planned folders concurrently.
type Deleter struct {
	workers int
	dryRun  bool
}

func NewDeleter(workers int, dryRun bool) *Deleter {
	if workers < 1 {
		workers = 1
	}
	return &Deleter{workers: workers, dryRun: dryRun}
}

type deleteResult struct {
	path string
	err  error
}

// Delete removes every planned folder and reports per-folder results. It must
// only be called after all sort outcomes are in; running it concurrently with
// the sort could delete a folder whose files are still being classified.
func (d *Deleter) Delete(ctx context.Context, folders []pathscan.SourceFolderEntry) *Report {
	report := &Report{Failed: make(map[string]error)}
	if len(folders) == 0 {
		return report
	}

	items := make(chan pathscan.SourceFolderEntry, len(folders))
	results := make(chan deleteResult, len(folders))

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			if res.err != nil {
				// A hint means the folder was gone already, e.g. removed by a
				// concurrent peer. The desired end state is reached.
				if hints.IsHint(res.err) {
					plog.Info("Source folder already gone", "path", res.path)
					report.Deleted = append(report.Deleted, res.path)
					continue
				}
				report.Failed[res.path] = res.err
				plog.Warn("Failed to delete source folder", "path", res.path, "error", res.err)
				continue
			}
			report.Deleted = append(report.Deleted, res.path)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for folder := range items {
				results <- deleteResult{path: folder.Path, err: d.remove(folder.Path)}
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

func (d *Deleter) remove(path string) error {
	if d.dryRun {
		plog.Notice("[DRY RUN] DEL", "path", path)
		return nil
	}
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return hints.New("folder already gone")
	}
	return os.RemoveAll(path)
}

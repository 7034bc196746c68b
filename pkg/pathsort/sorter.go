// Package pathsort relocates candidate files into their resolved destination
// folders using a producer/consumer worker pool. Workers never share mutable
// state with each other: per-file results flow as messages to a single
// collector goroutine that owns the run report.
package pathsort

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/scanwell-labs/dicomsort/pkg/pathscan"
	"github.com/scanwell-labs/dicomsort/pkg/plog"
	"github.com/scanwell-labs/dicomsort/pkg/sharded"
)

const defaultBufferSizeKB = 256

// Report is the aggregated outcome of one sort phase. It is built by the
// collector goroutine and safe to read once Run has returned.
type Report struct {
	Relocated      int
	AlreadySorted  int
	ReadFailed     int
	RelocateFailed int

	// AlreadySortedSubjects holds the subject ids of files found already
	// sorted. Cleanup must never delete a source folder matching one of
	// these, since it may be canonical output of a previous run.
	AlreadySortedSubjects map[string]struct{}

	// Failures lists every read or relocate failure for the final report.
	Failures []Result
}

// Sorter executes one sort phase. Create it with NewSorter and use it for a
// single Run.
type Sorter struct {
	plan    *Plan
	metrics Metrics

	createdDirCache *sharded.Set
	claimedDest     *sharded.Set
	dirSFGroup      singleflight.Group
	ioBufferPool    *sync.Pool
}

func NewSorter(plan *Plan) *Sorter {
	metrics := plan.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}

	bufferSizeKB := plan.BufferSizeKB
	if bufferSizeKB <= 0 {
		bufferSizeKB = defaultBufferSizeKB
	}
	bufferSize := bufferSizeKB * 1024

	return &Sorter{
		plan:            plan,
		metrics:         metrics,
		createdDirCache: sharded.NewSet(),
		claimedDest:     sharded.NewSet(),
		ioBufferPool: &sync.Pool{
			New: func() any {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// Run sorts all candidates and returns the aggregated report. Candidates are
// independent, so they are fanned out to Workers goroutines; no ordering is
// guaranteed or required. A cancelled context stops feeding new candidates;
// in-flight files finish, and the partial report is returned with ctx's error.
func (s *Sorter) Run(ctx context.Context, candidates []pathscan.CandidateFile) (*Report, error) {
	workers := s.plan.Workers
	if workers < 1 {
		workers = 1
	}

	items := make(chan pathscan.CandidateFile, workers*64)
	results := make(chan Result, workers*64)

	// The collector is the sole owner of the report: counters are plain ints
	// updated from exactly one goroutine, so no locks and no atomics races.
	report := &Report{AlreadySortedSubjects: make(map[string]struct{})}
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			s.collect(report, res)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range items {
				results <- s.process(file)
			}
		}()
	}

	// Producer. Closing items releases the workers once the queue drains.
	go func() {
		defer close(items)
		for _, file := range candidates {
			select {
			case <-ctx.Done():
				return
			case items <- file:
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// collect folds one result into the report. Runs only on the collector
// goroutine.
func (s *Sorter) collect(report *Report, res Result) {
	switch res.Outcome {
	case OutcomeRelocated:
		report.Relocated++
		s.metrics.AddFilesRelocated(1)
		plog.Debug("Relocated", "from", res.File.Path, "to", res.DestKey)
	case OutcomeAlreadySorted:
		report.AlreadySorted++
		report.AlreadySortedSubjects[res.SubjectID] = struct{}{}
		s.metrics.AddFilesAlreadySorted(1)
		plog.Debug("Already sorted", "path", res.File.Path)
	case OutcomeReadFailed:
		report.ReadFailed++
		report.Failures = append(report.Failures, res)
		s.metrics.AddFilesReadFailed(1)
		plog.Warn("Skipping file, metadata read failed", "path", res.File.Path, "error", res.Err)
	case OutcomeRelocateFailed:
		report.RelocateFailed++
		report.Failures = append(report.Failures, res)
		s.metrics.AddFilesRelocateFailed(1)
		plog.Warn("Failed to relocate file", "path", res.File.Path, "error", res.Err)
	}
}

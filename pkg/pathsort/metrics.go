package pathsort

import (
	"sync/atomic"
	"time"

	"github.com/scanwell-labs/dicomsort/pkg/plog"
	"github.com/scanwell-labs/dicomsort/pkg/util"
)

// Metrics defines the interface for collecting and reporting sort statistics.
type Metrics interface {
	AddFilesRelocated(n int64)
	AddFilesAlreadySorted(n int64)
	AddFilesReadFailed(n int64)
	AddFilesRelocateFailed(n int64)
	AddBytesWritten(n int64)
	AddDirsCreated(n int64)
	LogSummary(msg string)

	StartProgress(msg string, interval time.Duration)
	StopProgress()
}

// SortMetrics holds the atomic counters for tracking the sort's progress.
// It is the concrete implementation of the Metrics interface.
type SortMetrics struct {
	FilesRelocated      atomic.Int64
	FilesAlreadySorted  atomic.Int64
	FilesReadFailed     atomic.Int64
	FilesRelocateFailed atomic.Int64
	BytesWritten        atomic.Int64
	DirsCreated         atomic.Int64

	stopChan  chan struct{}
	startTime time.Time
}

func (m *SortMetrics) AddFilesRelocated(n int64)      { m.FilesRelocated.Add(n) }
func (m *SortMetrics) AddFilesAlreadySorted(n int64)  { m.FilesAlreadySorted.Add(n) }
func (m *SortMetrics) AddFilesReadFailed(n int64)     { m.FilesReadFailed.Add(n) }
func (m *SortMetrics) AddFilesRelocateFailed(n int64) { m.FilesRelocateFailed.Add(n) }
func (m *SortMetrics) AddBytesWritten(n int64)        { m.BytesWritten.Add(n) }
func (m *SortMetrics) AddDirsCreated(n int64)         { m.DirsCreated.Add(n) }

func (m *SortMetrics) StartProgress(msg string, interval time.Duration) {
	m.startTime = time.Now()
	m.stopChan = make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.LogSummary(msg)
			case <-m.stopChan:
				return
			}
		}
	}()
}

func (m *SortMetrics) StopProgress() {
	if m.stopChan != nil {
		close(m.stopChan)
	}
}

// LogSummary prints a summary of the sort operation with a custom message.
// This can be called by a background ticker or at the end of the run.
func (m *SortMetrics) LogSummary(msg string) {
	duration := time.Duration(0)
	if !m.startTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	plog.Info(msg,
		"files_relocated", m.FilesRelocated.Load(),
		"files_already_sorted", m.FilesAlreadySorted.Load(),
		"files_read_failed", m.FilesReadFailed.Load(),
		"files_relocate_failed", m.FilesRelocateFailed.Load(),
		"bytes_written", util.ByteCountIEC(m.BytesWritten.Load()),
		"dirs_created", m.DirsCreated.Load(),
		"duration", duration.Round(time.Millisecond),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no
// operations. It disables metrics collection without changing the calling code.
type NoopMetrics struct{}

func (m *NoopMetrics) AddFilesRelocated(n int64)                        {}
func (m *NoopMetrics) AddFilesAlreadySorted(n int64)                    {}
func (m *NoopMetrics) AddFilesReadFailed(n int64)                       {}
func (m *NoopMetrics) AddFilesRelocateFailed(n int64)                   {}
func (m *NoopMetrics) AddBytesWritten(n int64)                          {}
func (m *NoopMetrics) AddDirsCreated(n int64)                           {}
func (m *NoopMetrics) LogSummary(msg string)                            {}
func (m *NoopMetrics) StartProgress(msg string, interval time.Duration) {}
func (m *NoopMetrics) StopProgress()                                    {}

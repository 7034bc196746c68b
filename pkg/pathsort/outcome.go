package pathsort

import (
	"fmt"

	"github.com/scanwell-labs/dicomsort/pkg/pathscan"
	"github.com/scanwell-labs/dicomsort/pkg/util"
)

// Outcome classifies what happened to one candidate file. Every candidate
// produces exactly one outcome per run.
type Outcome int

const (
	// OutcomeRelocated means the file was placed at its destination.
	OutcomeRelocated Outcome = iota
	// OutcomeAlreadySorted means the file already lives under its resolved
	// destination folder; nothing was touched.
	OutcomeAlreadySorted
	// OutcomeReadFailed means the file's metadata could not be extracted;
	// the file was skipped and left untouched.
	OutcomeReadFailed
	// OutcomeRelocateFailed means the destination was resolved but the
	// move/copy itself failed.
	OutcomeRelocateFailed
)

var outcomeToString = map[Outcome]string{
	OutcomeRelocated:      "relocated",
	OutcomeAlreadySorted:  "already_sorted",
	OutcomeReadFailed:     "read_failed",
	OutcomeRelocateFailed: "relocate_failed",
}

var stringToOutcome map[string]Outcome

func init() {
	stringToOutcome = util.InvertMap(outcomeToString)
}

func (o Outcome) String() string {
	if str, ok := outcomeToString[o]; ok {
		return str
	}
	return fmt.Sprintf("unknown_outcome(%d)", o)
}

// Result is the message a sort worker sends to the collector for each
// candidate it processed.
type Result struct {
	File    pathscan.CandidateFile
	Outcome Outcome
	// SubjectID is set for relocated and already-sorted files.
	SubjectID string
	// DestKey is the resolved destination folder, when resolution succeeded.
	DestKey string
	// Err carries the failure for ReadFailed / RelocateFailed outcomes.
	Err error
}

// Package dicommeta extracts the sorting-relevant metadata from DICOM files.
package dicommeta

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Metadata holds the per-file attributes the destination of a file is
// resolved from.
type Metadata struct {
	// SubjectID is the patient identifier (PatientID, 0010,0020).
	SubjectID string
	// ProtocolName is the acquisition protocol (ProtocolName, 0018,1030),
	// falling back to SeriesDescription when absent. May be empty.
	ProtocolName string
	// SeriesNumber is the series index within the study (SeriesNumber,
	// 0020,0011). Zero when the file does not carry one.
	SeriesNumber int
}

// Reader extracts metadata from a single file. Implementations must be safe
// for concurrent use, since one Read runs per worker.
type Reader interface {
	Read(path string) (Metadata, error)
}

// Parser reads DICOM headers using a real DICOM decoder. Pixel data is
// skipped, so reading stays cheap even for large image files.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Read parses the DICOM header of the file at path. Files that are not valid
// DICOM, or that lack a subject identifier, yield an error and no metadata.
func (p *Parser) Read(path string) (Metadata, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to parse DICOM file %s: %w", path, err)
	}

	subjectID := firstString(&ds, tag.PatientID)
	if subjectID == "" {
		return Metadata{}, fmt.Errorf("file %s has no PatientID", path)
	}

	protocol := firstString(&ds, tag.ProtocolName)
	if protocol == "" {
		protocol = firstString(&ds, tag.SeriesDescription)
	}

	seriesNumber := 0
	if raw := firstString(&ds, tag.SeriesNumber); raw != "" {
		// SeriesNumber uses the IS value representation: an integer encoded
		// as a padded string.
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			seriesNumber = n
		}
	}

	return Metadata{
		SubjectID:    strings.TrimSpace(subjectID),
		ProtocolName: strings.TrimSpace(protocol),
		SeriesNumber: seriesNumber,
	}, nil
}

// firstString returns the first string value of the element with the given
// tag, or "" when the element is absent or not string-valued.
func firstString(ds *dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return ""
	}
	values, ok := el.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}

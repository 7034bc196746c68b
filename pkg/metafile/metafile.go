// Package metafile persists a machine-readable record of the last sort run
// into the destination root.
package metafile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scanwell-labs/dicomsort/pkg/util"
)

// MetaFileName is the name of the run record file. The leading dot keeps it
// out of the scanner's candidate set on subsequent runs.
const MetaFileName = ".dicomsort.run.json"

// MetafileContent holds the contents of the run record.
type MetafileContent struct {
	Version      string    `json:"version"`
	UUID         string    `json:"uuid"`
	TimestampUTC time.Time `json:"timestampUTC"`

	StudyPath  string `json:"studyPath"`
	OutputPath string `json:"outputPath"`
	Mode       string `json:"mode"`
	Preserve   bool   `json:"preserve"`
	DryRun     bool   `json:"dryRun,omitempty"`

	FilesRelocated      int `json:"filesRelocated"`
	FilesAlreadySorted  int `json:"filesAlreadySorted"`
	FilesReadFailed     int `json:"filesReadFailed"`
	FilesRelocateFailed int `json:"filesRelocateFailed"`

	FoldersDeleted    int `json:"foldersDeleted"`
	FoldersPreserved  int `json:"foldersPreserved"`
	FoldersCompressed int `json:"foldersCompressed,omitempty"`

	CompressionFormat string `json:"compressionFormat,omitempty"`
}

// Write creates and writes the run record into a given directory.
func Write(dirPath string, content *MetafileContent) error {
	metaFilePath := filepath.Join(dirPath, MetaFileName)
	jsonData, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal run record: %w", err)
	}

	// Group-writable: the record is part of the sorted data itself, and
	// sorted studies are commonly shared by a group of analysts.
	if err := os.WriteFile(metaFilePath, jsonData, util.UserGroupWritableFilePerms); err != nil {
		return fmt.Errorf("could not write run record %s: %w", metaFilePath, err)
	}

	return nil
}

// Read opens and parses the run record in a given directory.
func Read(dirPath string) (MetafileContent, error) {
	metaFilePath := filepath.Join(dirPath, MetaFileName)
	metaFile, err := os.Open(metaFilePath)
	if err != nil {
		// Note: os.IsNotExist errors are handled by the caller.
		return MetafileContent{}, err // Return the original error so os.IsNotExist works.
	}
	defer metaFile.Close()

	var content MetafileContent
	decoder := json.NewDecoder(metaFile)
	if err := decoder.Decode(&content); err != nil {
		return MetafileContent{}, fmt.Errorf("could not parse run record %s: %w. It may be corrupt", metaFilePath, err)
	}

	return content, nil
}

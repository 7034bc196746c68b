package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/scanwell-labs/dicomsort/pkg/config"
	"github.com/scanwell-labs/dicomsort/pkg/dicommeta"
	"github.com/scanwell-labs/dicomsort/pkg/metafile"
)

// fakeReader serves metadata keyed by base name, so files keep their identity
// across relocations.
type fakeReader struct {
	meta map[string]dicommeta.Metadata
}

func (f *fakeReader) Read(path string) (dicommeta.Metadata, error) {
	m, ok := f.meta[filepath.Base(path)]
	if !ok {
		return dicommeta.Metadata{}, errors.New("unreadable file")
	}
	return m, nil
}

func mustWrite(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func validatedConfig(t *testing.T, cfg config.Config) config.Config {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config validation failed: %v", err)
	}
	return cfg
}

func TestExecuteSortCopyWithCleanup(t *testing.T) {
	study := t.TempDir()
	output := t.TempDir()

	mustWrite(t, filepath.Join(study, "visit1", "a.dcm"), "a")
	mustWrite(t, filepath.Join(study, "visit1", "b.dcm"), "b")
	mustWrite(t, filepath.Join(study, "visit2", "c.dcm"), "c")

	reader := &fakeReader{meta: map[string]dicommeta.Metadata{
		"a.dcm": {SubjectID: "P001", ProtocolName: "Localizer", SeriesNumber: 1},
		"b.dcm": {SubjectID: "P001", ProtocolName: "T1.MPRAGE", SeriesNumber: 3},
		"c.dcm": {SubjectID: "P002", ProtocolName: "Localizer", SeriesNumber: 1},
	}}

	cfg := config.NewDefault()
	cfg.StudyPath = study
	cfg.OutputPath = output
	cfg.Preserve = false
	cfg.Engine.Metrics = false
	cfg = validatedConfig(t, cfg)

	if err := NewRunner(cfg, reader).ExecuteSort(context.Background()); err != nil {
		t.Fatalf("ExecuteSort failed: %v", err)
	}

	for _, rel := range []string{
		filepath.Join("P001", "01_Localizer", "a.dcm"),
		filepath.Join("P001", "03_T1_MPRAGE", "b.dcm"),
		filepath.Join("P002", "01_Localizer", "c.dcm"),
	} {
		if _, err := os.Stat(filepath.Join(output, rel)); err != nil {
			t.Errorf("expected sorted file %s: %v", rel, err)
		}
	}

	// preserve=false with nothing already sorted: the stale input folders go.
	for _, folder := range []string{"visit1", "visit2"} {
		if _, err := os.Stat(filepath.Join(study, folder)); !os.IsNotExist(err) {
			t.Errorf("source folder %s should be deleted", folder)
		}
	}

	record, err := metafile.Read(output)
	if err != nil {
		t.Fatalf("run record missing: %v", err)
	}
	if record.FilesRelocated != 3 || record.FoldersDeleted != 2 {
		t.Errorf("record = %+v, want 3 relocated and 2 folders deleted", record)
	}
	if record.UUID == "" {
		t.Error("run record should carry a UUID")
	}
}

func TestExecuteSortInPlaceIsIdempotent(t *testing.T) {
	study := t.TempDir()
	mustWrite(t, filepath.Join(study, "raw", "a.dcm"), "a")

	reader := &fakeReader{meta: map[string]dicommeta.Metadata{
		"a.dcm": {SubjectID: "P001", ProtocolName: "Localizer", SeriesNumber: 1},
	}}

	cfg := config.NewDefault()
	cfg.StudyPath = study
	cfg.Engine.Metrics = false
	cfg = validatedConfig(t, cfg)

	if err := NewRunner(cfg, reader).ExecuteSort(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	sorted := filepath.Join(study, "P001", "01_Localizer", "a.dcm")
	if _, err := os.Stat(sorted); err != nil {
		t.Fatalf("sorted file missing: %v", err)
	}

	if err := NewRunner(cfg, reader).ExecuteSort(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	record, err := metafile.Read(study)
	if err != nil {
		t.Fatalf("run record missing: %v", err)
	}
	if record.FilesAlreadySorted != 1 || record.FilesRelocated != 0 {
		t.Errorf("record = %+v, want 1 already sorted and 0 relocated", record)
	}
	if _, err := os.Stat(sorted); err != nil {
		t.Errorf("sorted file must survive the rerun: %v", err)
	}
}

func TestExecuteSortCompressesSurvivors(t *testing.T) {
	study := t.TempDir()
	output := t.TempDir()
	mustWrite(t, filepath.Join(study, "visit1", "a.dcm"), "a")

	reader := &fakeReader{meta: map[string]dicommeta.Metadata{
		"a.dcm": {SubjectID: "P001", ProtocolName: "Localizer", SeriesNumber: 1},
	}}

	cfg := config.NewDefault()
	cfg.StudyPath = study
	cfg.OutputPath = output
	cfg.Compression.Format = "zip"
	cfg.Engine.Metrics = false
	cfg = validatedConfig(t, cfg)

	if err := NewRunner(cfg, reader).ExecuteSort(context.Background()); err != nil {
		t.Fatalf("ExecuteSort failed: %v", err)
	}

	// preserve defaults to true, so the folder survives and becomes an archive.
	if _, err := os.Stat(filepath.Join(study, "visit1.zip")); err != nil {
		t.Errorf("expected archive for surviving folder: %v", err)
	}
	if _, err := os.Stat(filepath.Join(study, "visit1")); !os.IsNotExist(err) {
		t.Error("archived folder should be removed")
	}

	record, err := metafile.Read(output)
	if err != nil {
		t.Fatalf("run record missing: %v", err)
	}
	if record.FoldersCompressed != 1 || record.CompressionFormat != "zip" {
		t.Errorf("record = %+v, want 1 compressed zip folder", record)
	}
}

func TestExecuteSortDryRunWritesNothing(t *testing.T) {
	study := t.TempDir()
	mustWrite(t, filepath.Join(study, "raw", "a.dcm"), "a")

	reader := &fakeReader{meta: map[string]dicommeta.Metadata{
		"a.dcm": {SubjectID: "P001", ProtocolName: "Localizer", SeriesNumber: 1},
	}}

	cfg := config.NewDefault()
	cfg.StudyPath = study
	cfg.Runtime.DryRun = true
	cfg.Engine.Metrics = false
	cfg = validatedConfig(t, cfg)

	if err := NewRunner(cfg, reader).ExecuteSort(context.Background()); err != nil {
		t.Fatalf("ExecuteSort failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(study, "raw", "a.dcm")); err != nil {
		t.Errorf("dry run must not move files: %v", err)
	}
	if _, err := os.Stat(filepath.Join(study, "P001")); !os.IsNotExist(err) {
		t.Error("dry run must not create destination folders")
	}
	if _, err := metafile.Read(study); !os.IsNotExist(err) {
		t.Error("dry run must not write a run record")
	}
}

func TestExecuteSortMissingStudy(t *testing.T) {
	cfg := config.NewDefault()
	cfg.StudyPath = filepath.Join(t.TempDir(), "gone")
	cfg.Mode = "move"

	runner := NewRunner(cfg, &fakeReader{})
	if err := runner.ExecuteSort(context.Background()); err == nil {
		t.Error("expected preflight error for missing study")
	}
}

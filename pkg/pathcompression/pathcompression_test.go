package pathcompression

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"

	"github.com/scanwell-labs/dicomsort/pkg/pathscan"
	"github.com/scanwell-labs/dicomsort/pkg/plog"
)

func mustWrite(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func sourceFolder(t *testing.T, root, name string) pathscan.SourceFolderEntry {
	t.Helper()
	dir := filepath.Join(root, name)
	mustWrite(t, filepath.Join(dir, "x.dcm"), "xx")
	mustWrite(t, filepath.Join(dir, "sub", "y.dcm"), "yyyy")
	return pathscan.SourceFolderEntry{Path: dir, Name: name}
}

func TestZipRoundTrip(t *testing.T) {
	root := t.TempDir()
	folder := sourceFolder(t, root, "visit1")

	archiver, err := NewArchiver(&Plan{Format: Zip, Level: Default, Workers: 2})
	if err != nil {
		t.Fatalf("NewArchiver failed: %v", err)
	}

	report := archiver.Run(context.Background(), []pathscan.SourceFolderEntry{folder})
	if len(report.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", report.Failed)
	}
	if len(report.Compressed) != 1 {
		t.Fatalf("Compressed = %v, want 1 entry", report.Compressed)
	}

	// The original folder is replaced by the archive.
	if _, err := os.Stat(folder.Path); !os.IsNotExist(err) {
		t.Error("original folder should be removed after archiving")
	}

	zr, err := zip.OpenReader(folder.Path + ".zip")
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer zr.Close()

	got := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read entry %s: %v", f.Name, err)
		}
		got[f.Name] = string(data)
	}

	want := map[string]string{"x.dcm": "xx", "sub/y.dcm": "yyyy"}
	if len(got) != len(want) {
		t.Fatalf("archive entries = %v, want %v", got, want)
	}
	for name, content := range want {
		if got[name] != content {
			t.Errorf("entry %s = %q, want %q", name, got[name], content)
		}
	}
}

func TestGzipRoundTrip(t *testing.T) {
	root := t.TempDir()
	folder := sourceFolder(t, root, "visit1")

	archiver, err := NewArchiver(&Plan{Format: Gzip, Level: Fastest, Workers: 1})
	if err != nil {
		t.Fatalf("NewArchiver failed: %v", err)
	}

	report := archiver.Run(context.Background(), []pathscan.SourceFolderEntry{folder})
	if len(report.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", report.Failed)
	}

	f, err := os.Open(folder.Path + ".tar.gz")
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		t.Fatalf("failed to open gzip stream: %v", err)
	}
	defer gz.Close()

	got := make(map[string]string)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar read failed: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("failed to read entry %s: %v", header.Name, err)
		}
		got[header.Name] = string(data)
	}

	want := map[string]string{"x.dcm": "xx", "sub/y.dcm": "yyyy"}
	for name, content := range want {
		if got[name] != content {
			t.Errorf("entry %s = %q, want %q", name, got[name], content)
		}
	}
}

func TestRunRefusesExistingArchive(t *testing.T) {
	root := t.TempDir()
	folder := sourceFolder(t, root, "visit1")
	mustWrite(t, folder.Path+".zip", "pre-existing")

	archiver, err := NewArchiver(&Plan{Format: Zip, Workers: 1})
	if err != nil {
		t.Fatalf("NewArchiver failed: %v", err)
	}

	report := archiver.Run(context.Background(), []pathscan.SourceFolderEntry{folder})
	if len(report.Failed) != 1 {
		t.Fatalf("expected 1 failure, got %v", report.Failed)
	}

	// The folder and the pre-existing archive are both untouched.
	if _, err := os.Stat(folder.Path); err != nil {
		t.Errorf("folder should be intact: %v", err)
	}
	data, err := os.ReadFile(folder.Path + ".zip")
	if err != nil || string(data) != "pre-existing" {
		t.Error("pre-existing archive must not be overwritten")
	}
}

func TestRunSkipsEmptyFolder(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "empty-visit")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	folder := pathscan.SourceFolderEntry{Path: dir, Name: "empty-visit"}

	archiver, err := NewArchiver(&Plan{Format: Zip, Workers: 1})
	if err != nil {
		t.Fatalf("NewArchiver failed: %v", err)
	}

	report := archiver.Run(context.Background(), []pathscan.SourceFolderEntry{folder})

	// An empty folder is neither compressed nor failed; it stays in place.
	if len(report.Compressed) != 0 || len(report.Failed) != 0 {
		t.Errorf("expected empty report, got compressed=%v failed=%v", report.Compressed, report.Failed)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("empty folder should be left in place: %v", err)
	}
	if _, err := os.Stat(dir + ".zip"); !os.IsNotExist(err) {
		t.Error("no archive should be created for an empty folder")
	}
}

func TestRunDryRun(t *testing.T) {
	root := t.TempDir()
	folder := sourceFolder(t, root, "visit1")

	var logBuf bytes.Buffer
	plog.SetOutput(&logBuf)
	plog.SetLevel(plog.LevelNotice)
	defer func() {
		plog.SetOutput(os.Stdout)
		plog.SetLevel(slog.LevelInfo)
	}()

	archiver, err := NewArchiver(&Plan{Format: Zip, DryRun: true, Workers: 1})
	if err != nil {
		t.Fatalf("NewArchiver failed: %v", err)
	}

	report := archiver.Run(context.Background(), []pathscan.SourceFolderEntry{folder})
	if len(report.Compressed) != 1 {
		t.Errorf("dry run should report would-be archives, got %v", report.Compressed)
	}
	if _, err := os.Stat(folder.Path); err != nil {
		t.Errorf("dry run must not remove the folder: %v", err)
	}
	if _, err := os.Stat(folder.Path + ".zip"); !os.IsNotExist(err) {
		t.Error("dry run must not create an archive")
	}

	// A dry run announces each folder exactly once.
	out := logBuf.String()
	if !strings.Contains(out, "[DRY RUN] COMPRESS") {
		t.Errorf("expected dry-run notice in log output: %s", out)
	}
	if strings.Contains(out, "msg=COMPRESS") {
		t.Errorf("dry run must not also emit the live COMPRESS notice: %s", out)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", None, false},
		{"none", None, false},
		{"zip", Zip, false},
		{"tar", Tar, false},
		{"gzip", Gzip, false},
		{"rar", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

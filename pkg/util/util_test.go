package util

import (
	"os"
	"testing"
)

func TestWithUserWritePermission(t *testing.T) {
	tests := []struct {
		name string
		in   os.FileMode
		want os.FileMode
	}{
		{"read only file", 0444, 0644},
		{"already writable", 0644, 0644},
		{"read only dir", 0555, 0755},
		{"no perms", 0000, 0200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WithUserWritePermission(tt.in)
			if got != tt.want {
				t.Errorf("WithUserWritePermission(%o) = %o, want %o", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizedRelPath(t *testing.T) {
	got, err := NormalizedRelPath("/data/study", "/data/study/sub/scan.dcm")
	if err != nil {
		t.Fatalf("NormalizedRelPath failed: %v", err)
	}
	if got != "sub/scan.dcm" {
		t.Errorf("got %q, want %q", got, "sub/scan.dcm")
	}
}

func TestInvertMap(t *testing.T) {
	m := map[string]int{"a": 1, "b": 2}
	inv := InvertMap(m)
	if len(inv) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(inv))
	}
	if inv[1] != "a" || inv[2] != "b" {
		t.Errorf("unexpected inverted map: %v", inv)
	}
}

func TestByteCountIEC(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
	}

	for _, tt := range tests {
		if got := ByteCountIEC(tt.in); got != tt.want {
			t.Errorf("ByteCountIEC(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

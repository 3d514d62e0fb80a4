package security

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type entry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func validMetadata() string {
	return `{
  "name": "demo",
  "version": "1.0.0",
  "maintainer": "team",
  "description": "demo package",
  "specification": "1.0.0"
}`
}

func writeArchive(t *testing.T, entries []entry) string {
	t.Helper()

	archivePath := filepath.Join(t.TempDir(), "demo_1.0.0_x64.tar.gz")
	file, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	tarWriter := tar.NewWriter(gzWriter)

	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		header := &tar.Header{
			Name:     e.name,
			Mode:     0o644,
			Size:     int64(len(e.body)),
			Typeflag: typeflag,
			Linkname: e.linkname,
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("write header %q: %v", e.name, err)
		}
		if typeflag == tar.TypeReg {
			if _, err := tarWriter.Write([]byte(e.body)); err != nil {
				t.Fatalf("write body %q: %v", e.name, err)
			}
		}
	}

	if err := tarWriter.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gzWriter.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}

	return archivePath
}

func TestValidateArchive(t *testing.T) {
	tests := []struct {
		name    string
		entries []entry
		wantErr string
	}{
		{
			name: "valid package archive",
			entries: []entry{
				{name: "pms/metadata.json", body: validMetadata()},
				{name: "pms/install.sh", body: "#!/bin/sh\n"},
				{name: "data/install.sh", body: "#!/bin/sh\n"},
				{name: "data/remove.sh", body: "#!/bin/sh\n"},
			},
		},
		{
			name: "missing metadata",
			entries: []entry{
				{name: "pms/install.sh", body: "#!/bin/sh\n"},
			},
			wantErr: "no pms/metadata.json entry",
		},
		{
			name: "invalid metadata",
			entries: []entry{
				{name: "pms/metadata.json", body: `{"name": "demo"}`},
			},
			wantErr: "invalid metadata",
		},
		{
			name: "path traversal",
			entries: []entry{
				{name: "pms/metadata.json", body: validMetadata()},
				{name: "../escape.sh", body: "#!/bin/sh\n"},
			},
			wantErr: "path traversal",
		},
		{
			name: "absolute path",
			entries: []entry{
				{name: "pms/metadata.json", body: validMetadata()},
				{name: "/etc/passwd", body: "root"},
			},
			wantErr: "absolute paths",
		},
		{
			name: "symlink entry",
			entries: []entry{
				{name: "pms/metadata.json", body: validMetadata()},
				{name: "data/link", typeflag: tar.TypeSymlink, linkname: "/etc/passwd"},
			},
			wantErr: "unsupported file type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archivePath := writeArchive(t, tt.entries)

			err := NewArchiveValidator(nil).ValidateArchive(archivePath)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateArchive() error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateArchive() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateArchive() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateArchiveLimits(t *testing.T) {
	archivePath := writeArchive(t, []entry{
		{name: "pms/metadata.json", body: validMetadata()},
		{name: "data/payload.bin", body: strings.Repeat("x", 2048)},
	})

	validator := NewArchiveValidator(&SecurityConfig{
		MaxFileSize:  1024,
		MaxTotalSize: MaxTotalSize,
		MaxFiles:     MaxFilesPerArchive,
	})

	err := validator.ValidateArchive(archivePath)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("ValidateArchive() error = %v, want file size rejection", err)
	}
}

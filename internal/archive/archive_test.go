package archive

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pmt/internal/metadata"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to create file %s: %v", path, err)
		}
	}
}

func TestPackAndUnpackRoundTrip(t *testing.T) {
	sourceDir := t.TempDir()
	files := map[string]string{
		"file1.txt":        "content1",
		"subdir/file2.txt": "content2",
	}
	writeTree(t, sourceDir, files)

	archivePath := filepath.Join(t.TempDir(), "test.tar.gz")
	info, err := Pack(sourceDir, []string{"**/*"}, archivePath)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if len(info.SHA256) != 64 {
		t.Errorf("SHA256 = %q, want 64 hex chars", info.SHA256)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("SizeBytes = %d, want positive", info.SizeBytes)
	}
	if err := VerifyHash(archivePath, info.SHA256); err != nil {
		t.Errorf("VerifyHash on fresh archive failed: %v", err)
	}

	destDir := t.TempDir()
	extracted, err := Unpack(archivePath, destDir)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if len(extracted) != len(files) {
		t.Errorf("extracted %d files, want %d: %v", len(extracted), len(files), extracted)
	}

	for path, want := range files {
		content, err := os.ReadFile(filepath.Join(destDir, filepath.FromSlash(path)))
		if err != nil {
			t.Errorf("file %s was not extracted: %v", path, err)
			continue
		}
		if string(content) != want {
			t.Errorf("content of %s = %q, want %q", path, content, want)
		}
	}
}

func TestPackNoMatches(t *testing.T) {
	if _, err := Pack(t.TempDir(), []string{"nonexistent/*.xyz"}, filepath.Join(t.TempDir(), "empty.tar.gz")); err == nil {
		t.Error("expected error for no matching files")
	}
}

func TestVerifyHashMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyHash(path, "deadbeef"); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("error = %v, want ErrHashMismatch", err)
	}
}

func TestUnpackMissingArchive(t *testing.T) {
	if _, err := Unpack("nonexistent.tar.gz", t.TempDir()); err == nil {
		t.Error("expected error for non-existent archive")
	}
}

func writeMetadata(t *testing.T, dir string, meta metadata.Metadata) {
	t.Helper()
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadata.FileName), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func validMetadata() metadata.Metadata {
	return metadata.Metadata{
		Name:          "demo",
		Version:       "1.2.3",
		Maintainer:    "someone@example.com",
		Description:   "a demo package",
		Specification: metadata.SpecificationVersion,
	}
}

func TestBuild(t *testing.T) {
	parent := t.TempDir()
	packageDir := filepath.Join(parent, "demo")
	scriptsDir := filepath.Join(packageDir, ScriptsDir)
	if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeMetadata(t, scriptsDir, validMetadata())

	info, err := Build(packageDir)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	wantPath := filepath.Join(parent, "demo_1.2.3_x64.tar.gz")
	if info.Path != wantPath {
		t.Errorf("archive path = %q, want %q", info.Path, wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("archive not created: %v", err)
	}

	// The archive must contain the package contents at the top level.
	destDir := t.TempDir()
	extracted, err := Unpack(wantPath, destDir)
	if err != nil {
		t.Fatalf("Unpack of built archive failed: %v", err)
	}
	if len(extracted) != 1 || extracted[0] != filepath.Join(ScriptsDir, metadata.FileName) {
		t.Errorf("extracted = %v, want pms/metadata.json only", extracted)
	}
}

func TestBuildRejectsMissingScriptsDir(t *testing.T) {
	if _, err := Build(t.TempDir()); err == nil {
		t.Error("expected error when the scripts directory is missing")
	}
}

func TestBuildRejectsInvalidMetadata(t *testing.T) {
	packageDir := filepath.Join(t.TempDir(), "demo")
	scriptsDir := filepath.Join(packageDir, ScriptsDir)
	if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
		t.Fatal(err)
	}

	meta := validMetadata()
	meta.Specification = "2.0.0"
	writeMetadata(t, scriptsDir, meta)

	if _, err := Build(packageDir); !errors.Is(err, metadata.ErrInvalidSpecification) {
		t.Errorf("error = %v, want ErrInvalidSpecification", err)
	}
}

func TestBuildRequiresScriptsForPayload(t *testing.T) {
	parent := t.TempDir()
	packageDir := filepath.Join(parent, "demo")
	scriptsDir := filepath.Join(packageDir, ScriptsDir)
	writeTree(t, packageDir, map[string]string{
		DataDir + "/payload.bin": "binary",
	})
	if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeMetadata(t, scriptsDir, validMetadata())

	if _, err := Build(packageDir); err == nil {
		t.Fatal("expected error when data/ exists without install and remove scripts")
	}

	writeTree(t, packageDir, map[string]string{
		ScriptsDir + "/install.sh": "#!/bin/sh\n",
		ScriptsDir + "/remove.sh":  "#!/bin/sh\n",
	})
	if _, err := Build(packageDir); err != nil {
		t.Fatalf("Build with scripts failed: %v", err)
	}
}

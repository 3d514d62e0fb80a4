package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"pmt/internal/metadata"
)

const (
	// Arch is baked into archive filenames. Only one architecture is
	// published per repository.
	Arch = "x64"
	// Ext is the archive file extension
	Ext = ".tar.gz"

	// ScriptsDir is the directory inside a package holding its metadata
	// document and lifecycle scripts.
	ScriptsDir = "pms"
	// DataDir is the optional payload directory. A package that ships one
	// must also ship install and remove scripts.
	DataDir = "data"
)

// ScriptExtensions are the recognized lifecycle script extensions, probed in
// order.
var ScriptExtensions = []string{".sh", ".py", ".cmd", ".ps1"}

// FileName returns the canonical archive filename for a package version
func FileName(name, version string) string {
	return fmt.Sprintf("%s_%s_%s%s", name, version, Arch, Ext)
}

// Build validates a package directory and produces its distributable archive
// in the directory's parent. The archive contains the package directory's
// contents at the top level.
func Build(packageDir string) (*Info, error) {
	scriptsPath := filepath.Join(packageDir, ScriptsDir)
	if info, err := os.Stat(scriptsPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s directory does not exist in %s", ScriptsDir, packageDir)
	}

	metadataPath := filepath.Join(scriptsPath, metadata.FileName)
	meta, err := metadata.Load(metadataPath)
	if err != nil {
		return nil, err
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	// A payload requires install and remove scripts to place and delete it.
	dataPath := filepath.Join(packageDir, DataDir)
	if info, err := os.Stat(dataPath); err == nil && info.IsDir() {
		for _, base := range []string{"install", "remove"} {
			if findScript(scriptsPath, base) == "" {
				return nil, fmt.Errorf("%s script with a recognized extension not found in %s directory", base, ScriptsDir)
			}
		}
	}

	outputPath := filepath.Join(filepath.Dir(packageDir), FileName(meta.Name, meta.Version))
	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return Pack(packageDir, []string{"**/*"}, outputPath)
}

// findScript returns the path of the first existing script for base under
// dir, or an empty string when none of the recognized extensions exist.
func findScript(dir, base string) string {
	for _, ext := range ScriptExtensions {
		candidate := filepath.Join(dir, base+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

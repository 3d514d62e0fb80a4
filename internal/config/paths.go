package config

import (
	"os"
	"path/filepath"
)

// Paths is the on-disk layout of the data directory. Everything the tool
// persists between invocations hangs off one root.
type Paths struct {
	// Root is the data directory itself.
	Root string
	// TempDir holds downloaded archives and extraction workspaces.
	TempDir string
	// InfoDir holds per-package metadata, scripts and file lists copied at
	// install time.
	InfoDir string
	// StatusPath is the installation status ledger.
	StatusPath string
	// IndexCachePath is the merged repository index cache.
	IndexCachePath string
	// RegistryPath is the system software registry document.
	RegistryPath string
}

// NewPaths derives the standard layout from a data directory root
func NewPaths(root string) Paths {
	return Paths{
		Root:           root,
		TempDir:        filepath.Join(root, "temp"),
		InfoDir:        filepath.Join(root, "info"),
		StatusPath:     filepath.Join(root, "status.json"),
		IndexCachePath: filepath.Join(root, "packages.json"),
		RegistryPath:   filepath.Join(root, "registry.json"),
	}
}

// EnsureDirs creates the directories commands write into
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Root, p.TempDir, p.InfoDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

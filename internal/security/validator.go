// Package security validates uploaded package archives before they are
// accepted into the repository index.
package security

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"pmt/internal/archive"
	"pmt/internal/metadata"
)

const (
	// Security limits
	MaxFileSize        = 32 * 1024 * 1024  // 32MB per file
	MaxTotalSize       = 256 * 1024 * 1024 // 256MB total uncompressed
	MaxFilesPerArchive = 10000
)

// SecurityConfig contains security validation settings
type SecurityConfig struct {
	MaxFileSize  int64
	MaxTotalSize int64
	MaxFiles     int
}

// DefaultSecurityConfig returns the default security configuration
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		MaxFileSize:  MaxFileSize,
		MaxTotalSize: MaxTotalSize,
		MaxFiles:     MaxFilesPerArchive,
	}
}

// ArchiveValidator checks package archives for unsafe contents
type ArchiveValidator struct {
	config *SecurityConfig
}

// NewArchiveValidator creates a new archive validator
func NewArchiveValidator(config *SecurityConfig) *ArchiveValidator {
	if config == nil {
		config = DefaultSecurityConfig()
	}
	return &ArchiveValidator{config: config}
}

// ValidateArchive walks every entry of a package archive and rejects it when
// any entry is unsafe, when size limits are exceeded, or when the archive
// carries no valid metadata document.
func (v *ArchiveValidator) ValidateArchive(archivePath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	metadataPath := path.Join(archive.ScriptsDir, metadata.FileName)
	var sawMetadata bool
	var totalSize int64
	var fileCount int

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		fileCount++
		if fileCount > v.config.MaxFiles {
			return fmt.Errorf("archive contains too many files (max %d)", v.config.MaxFiles)
		}

		if err := validateEntryPath(header.Name); err != nil {
			return fmt.Errorf("unsafe file path %q: %w", header.Name, err)
		}

		// Reject symlinks and other special file types
		if header.Typeflag != tar.TypeReg && header.Typeflag != tar.TypeDir {
			return fmt.Errorf("unsupported file type for %q: %c", header.Name, header.Typeflag)
		}

		if header.Size > v.config.MaxFileSize {
			return fmt.Errorf("file %q too large (%d bytes, max %d)",
				header.Name, header.Size, v.config.MaxFileSize)
		}

		totalSize += header.Size
		if totalSize > v.config.MaxTotalSize {
			return fmt.Errorf("archive too large (%d bytes, max %d)",
				totalSize, v.config.MaxTotalSize)
		}

		if header.Typeflag == tar.TypeReg && cleanEntryPath(header.Name) == metadataPath {
			raw, err := io.ReadAll(io.LimitReader(tarReader, v.config.MaxFileSize))
			if err != nil {
				return fmt.Errorf("failed to read metadata entry: %w", err)
			}
			if _, err := metadata.Parse(raw); err != nil {
				return err
			}
			sawMetadata = true
		}
	}

	if !sawMetadata {
		return fmt.Errorf("archive has no %s entry", metadataPath)
	}

	return nil
}

// validateEntryPath checks for path traversal and other path-based attacks
func validateEntryPath(entryPath string) error {
	if path.IsAbs(entryPath) || strings.HasPrefix(entryPath, "\\") {
		return fmt.Errorf("absolute paths not allowed")
	}

	for _, segment := range strings.Split(cleanEntryPath(entryPath), "/") {
		if segment == ".." {
			return fmt.Errorf("path traversal attempt detected")
		}
	}

	for _, r := range entryPath {
		if r < 32 || r == 127 {
			return fmt.Errorf("control characters in path not allowed")
		}
	}

	return nil
}

func cleanEntryPath(entryPath string) string {
	return path.Clean(strings.TrimPrefix(entryPath, "./"))
}

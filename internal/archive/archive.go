// Package archive packs and unpacks the tar.gz files that packages are
// distributed as.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var ErrHashMismatch = errors.New("hash mismatch")

// Info describes a created archive
type Info struct {
	Path      string
	SHA256    string
	SizeBytes int64
}

// Pack creates a tar.gz archive at outputPath from the files under root that
// match the glob patterns. Paths inside the archive are relative to root and
// use forward slashes.
func Pack(root string, patterns []string, outputPath string) (*Info, error) {
	var files []string
	seen := make(map[string]bool)

	rootFS := os.DirFS(root)
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(rootFS, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to match pattern %s: %w", pattern, err)
		}

		for _, match := range matches {
			info, err := fs.Stat(rootFS, match)
			if err != nil || info.IsDir() {
				continue
			}
			if !seen[match] {
				files = append(files, match)
				seen[match] = true
			}
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files matched the specified patterns")
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer outFile.Close()

	hasher := sha256.New()
	gzWriter := gzip.NewWriter(io.MultiWriter(outFile, hasher))
	tarWriter := tar.NewWriter(gzWriter)

	for _, name := range files {
		if err := addFile(tarWriter, root, name); err != nil {
			return nil, fmt.Errorf("failed to add file %s: %w", name, err)
		}
	}

	// Flush both writers before reading the hash.
	if err := tarWriter.Close(); err != nil {
		return nil, err
	}
	if err := gzWriter.Close(); err != nil {
		return nil, err
	}
	if err := outFile.Close(); err != nil {
		return nil, err
	}

	stat, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	return &Info{
		Path:      outputPath,
		SHA256:    fmt.Sprintf("%x", hasher.Sum(nil)),
		SizeBytes: stat.Size(),
	}, nil
}

func addFile(tarWriter *tar.Writer, root, name string) error {
	file, err := os.Open(filepath.Join(root, filepath.FromSlash(name)))
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}

// Unpack extracts a tar.gz archive into destDir. Returns the relative paths
// of the extracted files.
func Unpack(archivePath string, destDir string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	var extracted []string
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}

		if header.Typeflag == tar.TypeDir {
			continue
		}

		name, err := extractFile(tarReader, header, destDir)
		if err != nil {
			return nil, fmt.Errorf("failed to extract file %s: %w", header.Name, err)
		}
		extracted = append(extracted, name)
	}

	return extracted, nil
}

func extractFile(tarReader *tar.Reader, header *tar.Header, destDir string) (string, error) {
	// Reject traversal outside destDir.
	cleanName := filepath.Clean(filepath.FromSlash(header.Name))
	if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
		return "", fmt.Errorf("invalid file path: %s", header.Name)
	}

	destPath := filepath.Join(destDir, cleanName)

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", err
	}

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(header.Mode)&0o777)
	if err != nil {
		return "", err
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, tarReader); err != nil {
		return "", err
	}
	return cleanName, nil
}

// SHA256 calculates the sha256 hash of a file
func SHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// VerifyHash checks a file against an expected sha256 hash
func VerifyHash(path, expected string) error {
	got, err := SHA256(path)
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("%w for %s: got %s, want %s", ErrHashMismatch, path, got, expected)
	}
	return nil
}

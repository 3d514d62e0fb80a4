// Package repo holds the in-memory repository index: every package name a
// configured source offers, every published version of it, and the metadata
// needed to resolve and download it. The index is built once per command
// invocation and is read-only while a resolution or apply pass runs.
package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"pmt/internal/metadata"
	"pmt/internal/version"
)

var (
	ErrUnknownPackage = errors.New("package not found in repository index")
	ErrUnsatisfiable  = errors.New("dependency is not available in the package repository")
)

// Entry is one published package version as a source advertises it
type Entry struct {
	Filename string            `json:"filename,omitempty"`
	Hash     string            `json:"hash,omitempty"`
	Metadata metadata.Metadata `json:"metadata"`
}

// Index maps package name to version to entry. Its JSON form is the
// packages.json wire format served by repository sources.
type Index map[string]map[string]Entry

// Load reads a cached index from disk
func Load(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index cache: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse index cache: %w", err)
	}

	return idx, nil
}

// Save writes the index to the local cache path
func (idx Index) Save(path string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Merge folds another index into this one. Later sources win on package name
// collision, matching the merge order of the sources list.
func (idx Index) Merge(other Index) {
	for name, versions := range other {
		idx[name] = versions
	}
}

// Versions returns the available versions for a package in ascending order
// under the component-wise version ordering.
func (idx Index) Versions(name string) ([]string, error) {
	entries, ok := idx[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, name)
	}

	versions := make([]string, 0, len(entries))
	for ver := range entries {
		versions = append(versions, ver)
	}
	sort.Slice(versions, func(i, j int) bool {
		cmp, err := version.Compare(versions[i], versions[j])
		if err != nil {
			return versions[i] < versions[j]
		}
		return cmp < 0
	})

	return versions, nil
}

// LatestVersion returns the maximum available version for a package
func (idx Index) LatestVersion(name string) (string, error) {
	versions, err := idx.Versions(name)
	if err != nil {
		return "", err
	}
	return versions[len(versions)-1], nil
}

// Entry returns the index entry for an exact package version
func (idx Index) Entry(name, ver string) (Entry, error) {
	entries, ok := idx[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownPackage, name)
	}
	entry, ok := entries[ver]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s version %s", ErrUnknownPackage, name, ver)
	}
	return entry, nil
}

// MetadataFor returns the metadata for an explicit version, or for the
// maximum available version when ver is empty. The name and version fields
// are stamped onto the returned copy, as index documents key them externally.
func (idx Index) MetadataFor(name, ver string) (*metadata.Metadata, error) {
	if ver == "" {
		latest, err := idx.LatestVersion(name)
		if err != nil {
			return nil, err
		}
		ver = latest
	}

	entry, err := idx.Entry(name, ver)
	if err != nil {
		return nil, err
	}

	m := entry.Metadata
	m.Name = name
	m.Version = ver
	return &m, nil
}

// LatestSatisfying returns a version of name meeting (comparator, required).
// An empty required string means unconstrained: the maximum available version
// is returned. Otherwise versions are scanned in ascending order and the
// first satisfying one wins, which keeps the choice deterministic.
func (idx Index) LatestSatisfying(name string, comparator version.Comparator, required string) (string, error) {
	if required == "" {
		return idx.LatestVersion(name)
	}

	req, err := version.Parse(required)
	if err != nil {
		return "", fmt.Errorf("invalid required version for %s: %w", name, err)
	}

	versions, err := idx.Versions(name)
	if err != nil {
		return "", err
	}

	for _, candidate := range versions {
		c, err := version.Parse(candidate)
		if err != nil {
			continue
		}
		if version.Satisfies(c, comparator, req) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s (%s %s)", ErrUnsatisfiable, name, comparator, required)
}

// Package registry maintains the system software registry: the machine-wide
// record of installed packages that lives outside the package manager's own
// data directory. It is a JSON file keyed by package name.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pmt/internal/metadata"
)

var ErrNotPublished = errors.New("package not present in the system registry")

// Software is one published package record
type Software struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Description   string `json:"description"`
	Maintainer    string `json:"maintainer"`
	Specification string `json:"specification"`
	Homepage      string `json:"homepage,omitempty"`
	Dependencies  string `json:"dependencies,omitempty"`
	InstallDate   string `json:"install_date"`
}

// FileRegistry is the file-backed registry implementation. Writes replace
// the whole document.
type FileRegistry struct {
	path string
	now  func() time.Time
}

// New creates a registry backed by the JSON file at path
func New(path string) *FileRegistry {
	return &FileRegistry{path: path, now: time.Now}
}

func (r *FileRegistry) load() (map[string]Software, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return map[string]Software{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read system registry: %w", err)
	}

	var entries map[string]Software
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse system registry: %w", err)
	}
	return entries, nil
}

func (r *FileRegistry) save(entries map[string]Software) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o644)
}

// Publish records a package as installed system software
func (r *FileRegistry) Publish(meta *metadata.Metadata) error {
	entries, err := r.load()
	if err != nil {
		return err
	}

	entries[meta.Name] = Software{
		Name:          meta.Name,
		Version:       meta.Version,
		Description:   meta.Description,
		Maintainer:    meta.Maintainer,
		Specification: meta.Specification,
		Homepage:      meta.Homepage,
		Dependencies:  strings.Join(meta.Dependencies, ", "),
		InstallDate:   r.now().Format(time.RFC3339),
	}

	return r.save(entries)
}

// Unpublish removes a package's record from the registry
func (r *FileRegistry) Unpublish(name string) error {
	entries, err := r.load()
	if err != nil {
		return err
	}

	if _, ok := entries[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotPublished, name)
	}
	delete(entries, name)

	return r.save(entries)
}

// Installed returns every published record sorted by package name
func (r *FileRegistry) Installed() ([]Software, error) {
	entries, err := r.load()
	if err != nil {
		return nil, err
	}

	list := make([]Software, 0, len(entries))
	for _, entry := range entries {
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	return list, nil
}

// IsPrivileged reports whether the current process can write the registry
// file. Mutating commands refuse to run without it.
func (r *FileRegistry) IsPrivileged() bool {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return false
	}

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return false
	}
	f.Close()

	// Leave no empty artifact behind when probing created the file.
	if info, err := os.Stat(r.path); err == nil && info.Size() == 0 {
		os.Remove(r.path)
	}
	return true
}

package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"pmt/internal/version"
)

// SpecificationVersion is the only package specification revision this tool
// understands.
const SpecificationVersion = "1.0.0"

// FileName is the metadata document inside a package's pms directory
const FileName = "metadata.json"

// Metadata describes one package version as declared by its author. The URL
// field is stamped in by the repository merge step and is absent from
// author-written metadata files.
type Metadata struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Maintainer    string   `json:"maintainer"`
	Description   string   `json:"description"`
	Specification string   `json:"specification"`
	Homepage      string   `json:"homepage,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
	URL           string   `json:"url,omitempty"`
}

var (
	ErrInvalidMetadata      = errors.New("invalid metadata")
	ErrInvalidSpecification = errors.New("invalid specification version")
	ErrInvalidDependency    = errors.New("invalid dependency declaration")
)

// Load reads and validates a metadata document from file
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a metadata document
func Parse(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata JSON: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Save writes a metadata document to file
func Save(path string, m *Metadata) error {
	if err := m.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks the required keys, the specification revision, and the
// shape of every dependency declaration.
func (m *Metadata) Validate() error {
	required := map[string]string{
		"name":          m.Name,
		"version":       m.Version,
		"maintainer":    m.Maintainer,
		"description":   m.Description,
		"specification": m.Specification,
	}
	for _, key := range []string{"name", "version", "maintainer", "description", "specification"} {
		if required[key] == "" {
			return fmt.Errorf("%w: missing required key %q", ErrInvalidMetadata, key)
		}
	}

	if m.Specification != SpecificationVersion {
		return fmt.Errorf("%w: must be %q, got %q",
			ErrInvalidSpecification, SpecificationVersion, m.Specification)
	}

	if !version.IsValid(m.Version) {
		return fmt.Errorf("%w: version %q is not a dotted numeric version", ErrInvalidMetadata, m.Version)
	}

	for _, dep := range m.Dependencies {
		if !version.DeclarationPattern.MatchString(dep) {
			return fmt.Errorf("%w: %q", ErrInvalidDependency, dep)
		}
	}

	return nil
}

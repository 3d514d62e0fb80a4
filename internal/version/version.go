package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version represents a dotted numeric version such as "1.10.0". Ordering is
// numeric component-wise, not lexicographic, so "1.10.0" sorts after "1.9.9".
type Version struct {
	raw        string
	components []int
}

// Parse parses a dotted numeric version string into a Version struct
func Parse(versionStr string) (*Version, error) {
	if versionStr == "" {
		return nil, fmt.Errorf("version cannot be empty")
	}

	parts := strings.Split(versionStr, ".")
	components := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid version component %q in %q", part, versionStr)
		}
		components[i] = n
	}

	return &Version{raw: versionStr, components: components}, nil
}

// String returns the string the version was parsed from
func (v *Version) String() string {
	return v.raw
}

// Compare compares two versions component-wise and returns:
// -1 if v < other
//
//	0 if v == other
//	1 if v > other
//
// Missing components compare as zero, so "1.2" == "1.2.0".
func (v *Version) Compare(other *Version) int {
	n := len(v.components)
	if len(other.components) > n {
		n = len(other.components)
	}

	for i := 0; i < n; i++ {
		a, b := 0, 0
		if i < len(v.components) {
			a = v.components[i]
		}
		if i < len(other.components) {
			b = other.components[i]
		}
		if a != b {
			if a > b {
				return 1
			}
			return -1
		}
	}

	return 0
}

// IsGreaterThan returns true if v > other
func (v *Version) IsGreaterThan(other *Version) bool {
	return v.Compare(other) > 0
}

// IsLessThan returns true if v < other
func (v *Version) IsLessThan(other *Version) bool {
	return v.Compare(other) < 0
}

// IsEqual returns true if v == other
func (v *Version) IsEqual(other *Version) bool {
	return v.Compare(other) == 0
}

// Compare compares two version strings and returns:
// -1 if version1 < version2
//
//	0 if version1 == version2
//	1 if version1 > version2
func Compare(version1, version2 string) (int, error) {
	v1, err := Parse(version1)
	if err != nil {
		return 0, fmt.Errorf("invalid version %s: %w", version1, err)
	}

	v2, err := Parse(version2)
	if err != nil {
		return 0, fmt.Errorf("invalid version %s: %w", version2, err)
	}

	return v1.Compare(v2), nil
}

// IsValid checks if a string is a well-formed dotted numeric version
func IsValid(versionStr string) bool {
	_, err := Parse(versionStr)
	return err == nil
}

// Max returns the greatest version string under the component-wise ordering.
// Strings that do not parse are ignored; an empty result means no candidate
// parsed.
func Max(candidates []string) string {
	var best *Version
	var bestRaw string
	for _, c := range candidates {
		v, err := Parse(c)
		if err != nil {
			continue
		}
		if best == nil || v.IsGreaterThan(best) {
			best = v
			bestRaw = c
		}
	}
	return bestRaw
}

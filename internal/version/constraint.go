package version

import (
	"regexp"
	"strings"
)

// Comparator narrows which versions of a dependency are acceptable.
type Comparator string

const (
	Eq  Comparator = "="
	Gt  Comparator = ">"
	Lt  Comparator = "<"
	Gte Comparator = ">="
	Lte Comparator = "<="
)

// Dependency is a parsed dependency declaration. An empty Version means the
// dependency is unconstrained and any available version is acceptable.
type Dependency struct {
	Name       string
	Comparator Comparator
	Version    string
}

// Unconstrained returns true when the declaration carried no version clause
func (d Dependency) Unconstrained() bool {
	return d.Version == ""
}

// DeclarationPattern matches well-formed dependency declarations of the form
// "name" or "name (comparator version)". The package-build validator rejects
// anything else before it reaches the resolver.
var DeclarationPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+(\s*\((=|[<>]=?)\s*[0-9.]+\))?$`)

// ParseDeclaration splits a dependency declaration into its name and version
// clause. The name is everything before the first whitespace; the remainder,
// if any, is parsed as "(comparator version)".
func ParseDeclaration(declaration string) Dependency {
	name := declaration
	clause := ""
	if idx := strings.IndexAny(declaration, " \t"); idx != -1 {
		name = declaration[:idx]
		clause = strings.TrimSpace(declaration[idx+1:])
	}

	comparator, required := parseClause(clause)

	return Dependency{
		Name:       name,
		Comparator: comparator,
		Version:    required,
	}
}

// parseClause splits a version clause such as "(>= 1.0.0)" into a comparator
// and a version string. A missing or unparenthesized clause yields "=" with
// no version, meaning unconstrained.
func parseClause(clause string) (Comparator, string) {
	clause = strings.ReplaceAll(clause, "(", "")
	clause = strings.ReplaceAll(clause, ")", "")
	clause = strings.TrimSpace(clause)

	idx := strings.IndexAny(clause, " \t")
	if clause == "" || idx == -1 {
		return Eq, ""
	}

	return Comparator(clause[:idx]), strings.TrimSpace(clause[idx+1:])
}

// Satisfies reports whether candidate meets (comparator, required) under the
// component-wise ordering. An unrecognized comparator never satisfies.
func Satisfies(candidate *Version, comparator Comparator, required *Version) bool {
	cmp := candidate.Compare(required)
	switch comparator {
	case Eq:
		return cmp == 0
	case Gt:
		return cmp > 0
	case Lt:
		return cmp < 0
	case Gte:
		return cmp >= 0
	case Lte:
		return cmp <= 0
	}
	return false
}

// SatisfiesString is the string convenience form of Satisfies
func SatisfiesString(candidate string, comparator Comparator, required string) (bool, error) {
	c, err := Parse(candidate)
	if err != nil {
		return false, err
	}
	r, err := Parse(required)
	if err != nil {
		return false, err
	}
	return Satisfies(c, comparator, r), nil
}

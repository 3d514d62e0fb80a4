// Package resolver computes the transitive closure of packages required to
// install a root package, pinning each name to exactly one version.
package resolver

import (
	"errors"
	"fmt"

	"pmt/internal/repo"
	"pmt/internal/version"
)

var ErrCircularDependency = errors.New("circular dependency detected")

// Plan maps each required package name to the version chosen for it. It
// contains the root package, every transitively required dependency, and the
// already-installed set the resolution was seeded with.
type Plan map[string]string

// Resolver resolves package dependencies against a repository index. The
// index is injected, never ambient, so repeated resolutions share no state.
type Resolver struct {
	index repo.Index
}

// New creates a resolver over the given index
func New(index repo.Index) *Resolver {
	return &Resolver{index: index}
}

// state carries the two traversal sets across one Resolve call. The active
// path detects cycles; the resolved map records finished subtrees. They must
// stay distinct: a package finished under one branch is legal to reach again
// through a sibling branch (a diamond), and only membership in the active
// path is a cycle.
type state struct {
	active   map[string]bool
	resolved map[string]string
}

// Resolve computes the plan for installing name at ver (empty ver means the
// latest available). installed seeds the already-satisfied set and is not
// modified; the returned plan is installed plus everything newly resolved.
func (r *Resolver) Resolve(name, ver string, installed map[string]string) (Plan, error) {
	st := &state{
		active:   make(map[string]bool),
		resolved: make(map[string]string),
	}

	if err := r.resolve(name, ver, installed, st); err != nil {
		return nil, err
	}

	plan := make(Plan, len(installed)+len(st.resolved))
	for n, v := range installed {
		plan[n] = v
	}
	for n, v := range st.resolved {
		plan[n] = v
	}

	return plan, nil
}

func (r *Resolver) resolve(name, ver string, installed map[string]string, st *state) error {
	meta, err := r.index.MetadataFor(name, ver)
	if err != nil {
		return err
	}

	if st.active[name] {
		return fmt.Errorf("%w: %s", ErrCircularDependency, name)
	}
	if _, done := st.resolved[name]; done {
		return nil
	}

	st.active[name] = true
	defer delete(st.active, name)

	for _, declaration := range meta.Dependencies {
		dep := version.ParseDeclaration(declaration)

		satisfied, err := r.alreadySatisfied(dep, installed, st.resolved)
		if err != nil {
			return err
		}
		if satisfied {
			continue
		}

		depVersion, err := r.index.LatestSatisfying(dep.Name, dep.Comparator, dep.Version)
		if err != nil {
			return err
		}

		if err := r.resolve(dep.Name, depVersion, installed, st); err != nil {
			return err
		}
	}

	st.resolved[name] = meta.Version
	return nil
}

// alreadySatisfied reports whether a dependency is covered by the installed
// set or by a sibling branch resolved earlier in this pass. An unconstrained
// dependency is satisfied by any present version.
func (r *Resolver) alreadySatisfied(dep version.Dependency, installed, resolved map[string]string) (bool, error) {
	present, ok := installed[dep.Name]
	if !ok {
		present, ok = resolved[dep.Name]
	}
	if !ok {
		return false, nil
	}

	if dep.Unconstrained() {
		return true, nil
	}

	return version.SatisfiesString(present, dep.Comparator, dep.Version)
}

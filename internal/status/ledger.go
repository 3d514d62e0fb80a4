// Package status persists the per-package lifecycle ledger: for every
// package version ever touched, the operator's intent (desired) and the
// actual installation progress (current).
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Desired records operator intent for a package version
type Desired string

// Current records actual installation progress for a package version
type Current string

const (
	DesiredUnknown Desired = "u"
	DesiredInstall Desired = "i"
	DesiredRemove  Desired = "r"

	CurrentNotInstalled  Current = "n"
	CurrentInstalled     Current = "i"
	CurrentUnpacked      Current = "u"
	CurrentHalfInstalled Current = "h"
)

// DesiredNames maps desired codes to human-readable descriptions
var DesiredNames = map[Desired]string{
	DesiredUnknown: "unknown",
	DesiredInstall: "marked for installation",
	DesiredRemove:  "marked for removal",
}

// CurrentNames maps current codes to human-readable descriptions
var CurrentNames = map[Current]string{
	CurrentNotInstalled:  "not installed",
	CurrentInstalled:     "successfully installed",
	CurrentUnpacked:      "unpacked",
	CurrentHalfInstalled: "partially installed",
}

// Phase is the desired/current pair for one package version
type Phase struct {
	Desired Desired `json:"desired"`
	Current Current `json:"current"`
}

// Record is the persisted state of one package version
type Record struct {
	Status      Phase  `json:"status"`
	InstallDate string `json:"install_date,omitempty"`
	RemoveDate  string `json:"remove_date,omitempty"`
}

var (
	ErrInvalidStatus = errors.New("invalid status value")
	ErrNotInstalled  = errors.New("package not installed")
)

// Ledger reads and rewrites the status file wholesale on every update. It is
// created on first write; concurrent orchestrators are a caller problem.
type Ledger struct {
	path string
}

// NewLedger returns a ledger backed by the given file path
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

func (l *Ledger) load() (map[string]map[string]Record, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var info map[string]map[string]Record
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse status file: %w", err)
	}
	if info == nil {
		info = make(map[string]map[string]Record)
	}

	return info, nil
}

func (l *Ledger) save(info map[string]map[string]Record) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status file: %w", err)
	}
	return os.WriteFile(l.path, data, 0o644)
}

// RecordTransition replaces the desired/current pair for the exact
// (name, version) entry, creating it if absent. Previously recorded dates for
// that entry are dropped; a non-zero date stamps install_date on a terminal
// install (i,i) and remove_date on a terminal removal (u,n).
func (l *Ledger) RecordTransition(name, ver string, desired Desired, current Current, date time.Time) error {
	if _, ok := DesiredNames[desired]; !ok {
		return fmt.Errorf("%w: desired %q", ErrInvalidStatus, desired)
	}
	if _, ok := CurrentNames[current]; !ok {
		return fmt.Errorf("%w: current %q", ErrInvalidStatus, current)
	}

	info, err := l.load()
	if os.IsNotExist(err) {
		info = make(map[string]map[string]Record)
	} else if err != nil {
		return err
	}

	if info[name] == nil {
		info[name] = make(map[string]Record)
	}

	record := Record{Status: Phase{Desired: desired, Current: current}}
	if !date.IsZero() {
		stamp := date.Format(time.RFC3339)
		if desired == DesiredInstall && current == CurrentInstalled {
			record.InstallDate = stamp
		}
		if desired == DesiredUnknown && current == CurrentNotInstalled {
			record.RemoveDate = stamp
		}
	}
	info[name][ver] = record

	return l.save(info)
}

// PackageStatus returns every recorded version of a package, or nil when the
// package has never been installed or removed.
func (l *Ledger) PackageStatus(name string) (map[string]Record, error) {
	info, err := l.load()
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return info[name], nil
}

// InstalledVersion returns the unique version of name whose record satisfies
// the installed predicate (desired=i, current=i). It fails with
// ErrNotInstalled when no such version exists or the ledger has never been
// created.
func (l *Ledger) InstalledVersion(name string) (string, error) {
	info, err := l.load()
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotInstalled, name)
	}
	if err != nil {
		return "", err
	}

	versions, ok := info[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotInstalled, name)
	}

	for ver, record := range versions {
		if record.Status.Desired == DesiredInstall && record.Status.Current == CurrentInstalled {
			return ver, nil
		}
	}

	return "", fmt.Errorf("%w: no installed version of %s", ErrNotInstalled, name)
}

// AllInstalled returns every package satisfying the installed predicate,
// mapped to its installed version. A missing ledger file yields an empty map.
func (l *Ledger) AllInstalled() (map[string]string, error) {
	installed := make(map[string]string)

	info, err := l.load()
	if os.IsNotExist(err) {
		return installed, nil
	}
	if err != nil {
		return nil, err
	}

	for name, versions := range info {
		for ver, record := range versions {
			if record.Status.Desired == DesiredInstall && record.Status.Current == CurrentInstalled {
				installed[name] = ver
			}
		}
	}

	return installed, nil
}

// IsInstalled reports whether this exact package version satisfies the
// installed predicate.
func (l *Ledger) IsInstalled(name, ver string) (bool, error) {
	info, err := l.load()
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	record, ok := info[name][ver]
	if !ok {
		return false, nil
	}

	return record.Status.Desired == DesiredInstall && record.Status.Current == CurrentInstalled, nil
}

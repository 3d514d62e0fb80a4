// Package manager orchestrates package transactions: install, remove and
// upgrade. It drives the resolver, the archive fetcher, the lifecycle
// scripts, the status ledger and the system registry in the order that keeps
// the ledger truthful at every step. Failed steps abort the transaction;
// committed steps are never rolled back.
package manager

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pmt/internal/archive"
	"pmt/internal/config"
	"pmt/internal/metadata"
	"pmt/internal/repo"
	"pmt/internal/resolver"
	"pmt/internal/status"
	"pmt/internal/version"
)

var ErrCancelled = errors.New("operation cancelled")

// ArchiveFetcher downloads a package archive and verifies its hash
type ArchiveFetcher interface {
	FetchArchive(ctx context.Context, archiveURL, dest, expectedHash string) error
}

// ScriptRunner executes one lifecycle script, probing the recognized
// extensions. A missing script is a no-op.
type ScriptRunner interface {
	Run(ctx context.Context, base string) error
}

// SystemRegistry is the machine-wide installed-software record
type SystemRegistry interface {
	Publish(meta *metadata.Metadata) error
	Unpublish(name string) error
	IsPrivileged() bool
}

// Manager runs package transactions against one data directory
type Manager struct {
	Index    repo.Index
	Ledger   *status.Ledger
	Paths    config.Paths
	Fetch    ArchiveFetcher
	Scripts  ScriptRunner
	Registry SystemRegistry

	In  io.Reader
	Out io.Writer

	Quiet     bool
	AssumeYes bool

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (m *Manager) timeNow() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) printf(format string, args ...any) {
	if m.Quiet {
		return
	}
	fmt.Fprintf(m.Out, format+"\n", args...)
}

// confirm prompts for a yes/no answer. defaultYes selects which bare answer
// (just pressing enter) means proceed.
func (m *Manager) confirm(prompt string, defaultYes bool) bool {
	if m.AssumeYes {
		return true
	}

	fmt.Fprint(m.Out, prompt)
	answer, _ := bufio.NewReader(m.In).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))

	if defaultYes {
		return answer != "n"
	}
	return answer == "y"
}

// Install installs a package (empty ver means the latest available). The
// dependency closure is resolved before the first ledger write or download,
// so an unresolvable request leaves the system untouched.
func (m *Manager) Install(ctx context.Context, name, ver string) error {
	installed, err := m.Ledger.AllInstalled()
	if err != nil {
		return err
	}

	plan, err := resolver.New(m.Index).Resolve(name, ver, installed)
	if err != nil {
		return err
	}

	rootVersion := plan[name]
	m.printf("Installing package %s, version: %s...", name, rootVersion)

	if err := m.deploy(ctx, name, rootVersion); err != nil {
		return err
	}

	// Every plan entry except the root is a candidate. The only filter is
	// the per-pin installed predicate in installDependencies: a dependency
	// the resolver re-pinned past its installed version must be deployed
	// at the new pin.
	dependencies := make(map[string]string)
	for depName, depVersion := range plan {
		if depName == name {
			continue
		}
		dependencies[depName] = depVersion
	}

	if err := m.installDependencies(ctx, dependencies); err != nil {
		return err
	}

	return m.configure(ctx, name, rootVersion)
}

// installDependencies installs the planned dependencies that are not yet on
// the system, after one confirmation covering all of them.
func (m *Manager) installDependencies(ctx context.Context, dependencies map[string]string) error {
	names := make([]string, 0, len(dependencies))
	for depName, depVersion := range dependencies {
		ok, err := m.Ledger.IsInstalled(depName, depVersion)
		if err != nil {
			return err
		}
		if !ok {
			names = append(names, depName)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	if !m.AssumeYes {
		fmt.Fprintln(m.Out, "The following packages will also be installed:")
		for _, depName := range names {
			fmt.Fprintf(m.Out, "%s %s\n", depName, dependencies[depName])
		}
		if !m.confirm("Are you sure you want to continue? (Y/n): ", true) {
			fmt.Fprintln(m.Out, "Operation cancelled.")
			return ErrCancelled
		}
	}

	for _, depName := range names {
		if err := m.deploy(ctx, depName, dependencies[depName]); err != nil {
			return err
		}
		if err := m.configure(ctx, depName, dependencies[depName]); err != nil {
			return err
		}
	}

	return nil
}

// deploy records the package as selected, downloads its archive, verifies
// the hash and unpacks it into the temp workspace.
func (m *Manager) deploy(ctx context.Context, name, ver string) error {
	entry, err := m.Index.Entry(name, ver)
	if err != nil {
		return err
	}

	if err := m.Ledger.RecordTransition(name, ver, status.DesiredInstall, status.CurrentNotInstalled, time.Time{}); err != nil {
		return err
	}

	archiveURL := strings.TrimSuffix(entry.Metadata.URL, "/") + "/" + entry.Filename
	target := filepath.Join(m.Paths.TempDir, archive.FileName(name, ver))

	m.printf("Downloading package from %s", archiveURL)
	if err := m.Fetch.FetchArchive(ctx, archiveURL, target, entry.Hash); err != nil {
		return err
	}
	m.printf("Package downloaded in %s", target)
	m.printf("Package verified")

	workDir := filepath.Join(m.Paths.TempDir, name)
	if _, err := archive.Unpack(target, workDir); err != nil {
		return err
	}

	return m.Ledger.RecordTransition(name, ver, status.DesiredInstall, status.CurrentUnpacked, time.Time{})
}

// configure turns an unpacked package into an installed one: info files,
// lifecycle scripts, registry record, terminal ledger state. The temp
// workspace is cleaned afterwards.
func (m *Manager) configure(ctx context.Context, name, ver string) error {
	m.printf("Configuring package %s...", name)

	meta, err := m.Index.MetadataFor(name, ver)
	if err != nil {
		return err
	}

	workDir := filepath.Join(m.Paths.TempDir, name)
	if err := m.createPackageInfo(name, workDir); err != nil {
		return err
	}

	if err := m.Ledger.RecordTransition(name, ver, status.DesiredInstall, status.CurrentHalfInstalled, time.Time{}); err != nil {
		return err
	}

	scriptsDir := filepath.Join(workDir, archive.ScriptsDir)
	for _, script := range []string{"preinst", "install", "postinst"} {
		if err := m.Scripts.Run(ctx, filepath.Join(scriptsDir, script)); err != nil {
			return err
		}
	}

	if err := m.Registry.Publish(meta); err != nil {
		return err
	}

	if err := m.Ledger.RecordTransition(name, ver, status.DesiredInstall, status.CurrentInstalled, m.timeNow()); err != nil {
		return err
	}

	m.printf("Package %s_%s installed successfully", name, ver)

	// Transaction done, drop the workspace.
	os.RemoveAll(workDir)
	os.Remove(filepath.Join(m.Paths.TempDir, archive.FileName(name, ver)))

	return nil
}

// createPackageInfo copies the package's metadata document and lifecycle
// scripts into the info directory and records the payload file list. Removal
// needs these after the temp workspace is gone.
func (m *Manager) createPackageInfo(name, workDir string) error {
	scriptsDir := filepath.Join(workDir, archive.ScriptsDir)

	if err := copyFile(
		filepath.Join(scriptsDir, metadata.FileName),
		filepath.Join(m.Paths.InfoDir, name+"."+metadata.FileName),
	); err != nil {
		return err
	}

	for _, script := range []string{"preinst", "install", "postinst", "prerm", "remove", "postrm"} {
		for _, ext := range archive.ScriptExtensions {
			source := filepath.Join(scriptsDir, script+ext)
			if _, err := os.Stat(source); err != nil {
				continue
			}
			if err := copyFile(source, filepath.Join(m.Paths.InfoDir, name+"."+script+ext)); err != nil {
				return err
			}
		}
	}

	dataDir := filepath.Join(workDir, archive.DataDir)
	if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		return nil
	}

	var files []string
	err := filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	sort.Strings(files)
	return os.WriteFile(
		filepath.Join(m.Paths.InfoDir, name+".list"),
		[]byte(strings.Join(files, "\n")+"\n"),
		0o644,
	)
}

// Remove removes an installed package. Without force, packages that the
// target's own dependency closure names and that are installed are offered
// for removal too; with force only the target is touched.
func (m *Manager) Remove(ctx context.Context, name string, force bool) error {
	ver, err := m.Ledger.InstalledVersion(name)
	if err != nil {
		return err
	}

	meta, err := m.metadataFor(name, ver)
	if err != nil {
		return err
	}

	if !force {
		installed, err := m.Ledger.AllInstalled()
		if err != nil {
			return err
		}

		plan, err := resolver.New(m.Index).Resolve(name, ver, installed)
		if err != nil {
			return fmt.Errorf("cannot remove package %s due to unmet dependencies: %w", name, err)
		}
		delete(plan, name)

		if err := m.removeDependencies(ctx, plan); err != nil {
			return err
		}
	}

	return m.deconfigure(ctx, meta)
}

// removeDependencies offers the installed members of the plan for removal
// after one confirmation, defaulting to no.
func (m *Manager) removeDependencies(ctx context.Context, plan resolver.Plan) error {
	var names []string
	for depName, depVersion := range plan {
		ok, err := m.Ledger.IsInstalled(depName, depVersion)
		if err != nil {
			return err
		}
		if ok {
			names = append(names, depName)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	if !m.AssumeYes {
		fmt.Fprintln(m.Out, "The following packages will also be removed:")
		for _, depName := range names {
			fmt.Fprintf(m.Out, "%s %s\n", depName, plan[depName])
		}
		if !m.confirm("Are you sure you want to continue? (y/N): ", false) {
			fmt.Fprintln(m.Out, "Operation cancelled.")
			return ErrCancelled
		}
	}

	for _, depName := range names {
		if err := m.Remove(ctx, depName, true); err != nil {
			return err
		}
	}

	return nil
}

// deconfigure walks an installed package down to removed: registry record
// out, lifecycle scripts from the info directory, info files deleted,
// terminal ledger state with the removal date.
func (m *Manager) deconfigure(ctx context.Context, meta *metadata.Metadata) error {
	m.printf("Removing package %s_%s...", meta.Name, meta.Version)

	if err := m.Ledger.RecordTransition(meta.Name, meta.Version, status.DesiredRemove, status.CurrentInstalled, time.Time{}); err != nil {
		return err
	}

	if err := m.Registry.Unpublish(meta.Name); err != nil {
		return err
	}

	if err := m.Ledger.RecordTransition(meta.Name, meta.Version, status.DesiredRemove, status.CurrentHalfInstalled, time.Time{}); err != nil {
		return err
	}

	infoBase := filepath.Join(m.Paths.InfoDir, meta.Name)
	for _, script := range []string{"prerm", "remove", "postrm"} {
		if err := m.Scripts.Run(ctx, infoBase+"."+script); err != nil {
			return err
		}
	}

	m.deletePackageInfo(meta.Name)

	if err := m.Ledger.RecordTransition(meta.Name, meta.Version, status.DesiredUnknown, status.CurrentNotInstalled, m.timeNow()); err != nil {
		return err
	}

	m.printf("Package %s_%s removed successfully", meta.Name, meta.Version)
	return nil
}

func (m *Manager) deletePackageInfo(name string) {
	matches, err := filepath.Glob(filepath.Join(m.Paths.InfoDir, name+".*"))
	if err != nil {
		return
	}
	for _, match := range matches {
		os.Remove(match)
	}
}

// Upgrade replaces every installed package that the index carries a newer
// version of. Returns the full installed set with upgraded entries at their
// new versions; packages absent from the index are left untouched.
func (m *Manager) Upgrade(ctx context.Context) (map[string]string, error) {
	installed, err := m.Ledger.AllInstalled()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(installed))
	for name := range installed {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make(map[string]string, len(installed))
	for name, ver := range installed {
		result[name] = ver
	}

	for _, name := range names {
		latest, err := m.Index.LatestVersion(name)
		if errors.Is(err, repo.ErrUnknownPackage) {
			continue
		}
		if err != nil {
			return nil, err
		}

		newer, err := version.Compare(latest, installed[name])
		if err != nil {
			return nil, err
		}
		if newer <= 0 {
			continue
		}

		if err := m.Remove(ctx, name, true); err != nil {
			return nil, err
		}
		if err := m.Install(ctx, name, ""); err != nil {
			return nil, err
		}
		result[name] = latest
	}

	return result, nil
}

// Clean drops the temp workspace and the cached repository index
func (m *Manager) Clean() error {
	if err := os.RemoveAll(m.Paths.TempDir); err != nil {
		return err
	}
	if err := os.MkdirAll(m.Paths.TempDir, 0o755); err != nil {
		return err
	}
	m.printf("Temporal path cleaned: %s", m.Paths.TempDir)

	if _, err := os.Stat(m.Paths.IndexCachePath); err == nil {
		if err := os.Remove(m.Paths.IndexCachePath); err != nil {
			return err
		}
		m.printf("File %s removed", m.Paths.IndexCachePath)
	}

	return nil
}

// metadataFor prefers the repository index and falls back to the metadata
// document recorded at install time, so removal works without sources.
func (m *Manager) metadataFor(name, ver string) (*metadata.Metadata, error) {
	meta, err := m.Index.MetadataFor(name, ver)
	if err == nil {
		return meta, nil
	}

	meta, infoErr := metadata.Load(filepath.Join(m.Paths.InfoDir, name+"."+metadata.FileName))
	if infoErr != nil {
		return nil, err
	}
	return meta, nil
}

func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

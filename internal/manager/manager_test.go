package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pmt/internal/archive"
	"pmt/internal/config"
	"pmt/internal/metadata"
	"pmt/internal/repo"
	"pmt/internal/status"
)

const sourceURL = "http://repo.example.com"

// fixtures builds real package archives in a directory and accumulates the
// matching repository index.
type fixtures struct {
	t   *testing.T
	dir string
	idx repo.Index
}

func newFixtures(t *testing.T) *fixtures {
	return &fixtures{t: t, dir: t.TempDir(), idx: make(repo.Index)}
}

func (f *fixtures) add(meta metadata.Metadata, extra map[string]string) {
	f.t.Helper()

	packageDir := filepath.Join(f.t.TempDir(), meta.Name)
	scriptsDir := filepath.Join(packageDir, archive.ScriptsDir)
	if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
		f.t.Fatal(err)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(scriptsDir, metadata.FileName), data, 0o644); err != nil {
		f.t.Fatal(err)
	}
	for rel, content := range extra {
		full := filepath.Join(packageDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			f.t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o755); err != nil {
			f.t.Fatal(err)
		}
	}

	filename := archive.FileName(meta.Name, meta.Version)
	info, err := archive.Pack(packageDir, []string{"**/*"}, filepath.Join(f.dir, filename))
	if err != nil {
		f.t.Fatalf("failed to build fixture archive: %v", err)
	}

	if f.idx[meta.Name] == nil {
		f.idx[meta.Name] = make(map[string]repo.Entry)
	}
	stamped := meta
	stamped.URL = sourceURL
	f.idx[meta.Name][meta.Version] = repo.Entry{
		Filename: filename,
		Hash:     info.SHA256,
		Metadata: stamped,
	}
}

// fakeFetcher serves fixture archives instead of the network
type fakeFetcher struct {
	dir   string
	calls []string
}

func (f *fakeFetcher) FetchArchive(_ context.Context, archiveURL, dest, expectedHash string) error {
	f.calls = append(f.calls, archiveURL)

	source := filepath.Join(f.dir, filepath.Base(archiveURL))
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("no such fixture archive: %s", archiveURL)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// fakeScripts records lifecycle script invocations
type fakeScripts struct {
	calls  []string
	failOn string
}

func (s *fakeScripts) Run(_ context.Context, base string) error {
	name := filepath.Base(base)
	s.calls = append(s.calls, name)
	if s.failOn != "" && strings.HasSuffix(name, s.failOn) {
		return errors.New("script failed")
	}
	return nil
}

// fakeRegistry records system registry mutations
type fakeRegistry struct {
	published map[string]string
}

func (r *fakeRegistry) Publish(meta *metadata.Metadata) error {
	if r.published == nil {
		r.published = make(map[string]string)
	}
	r.published[meta.Name] = meta.Version
	return nil
}

func (r *fakeRegistry) Unpublish(name string) error {
	delete(r.published, name)
	return nil
}

func (r *fakeRegistry) IsPrivileged() bool { return true }

type harness struct {
	manager  *Manager
	fetcher  *fakeFetcher
	scripts  *fakeScripts
	registry *fakeRegistry
	out      *bytes.Buffer
}

func newHarness(t *testing.T, f *fixtures) *harness {
	t.Helper()

	paths := config.NewPaths(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	h := &harness{
		fetcher:  &fakeFetcher{dir: f.dir},
		scripts:  &fakeScripts{},
		registry: &fakeRegistry{},
		out:      &bytes.Buffer{},
	}
	h.manager = &Manager{
		Index:     f.idx,
		Ledger:    status.NewLedger(paths.StatusPath),
		Paths:     paths,
		Fetch:     h.fetcher,
		Scripts:   h.scripts,
		Registry:  h.registry,
		In:        strings.NewReader(""),
		Out:       h.out,
		AssumeYes: true,
		Now:       func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	return h
}

func meta(name, ver string, deps ...string) metadata.Metadata {
	return metadata.Metadata{
		Name:          name,
		Version:       ver,
		Maintainer:    "team@example.com",
		Description:   name + " package",
		Specification: metadata.SpecificationVersion,
		Dependencies:  deps,
	}
}

func TestInstallWithDependencies(t *testing.T) {
	f := newFixtures(t)
	f.add(meta("libbase", "1.0.0"), nil)
	f.add(meta("app", "2.0.0", "libbase (>= 1.0.0)"), nil)

	h := newHarness(t, f)
	if err := h.manager.Install(context.Background(), "app", ""); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	installed, err := h.manager.Ledger.AllInstalled()
	if err != nil {
		t.Fatal(err)
	}
	if installed["app"] != "2.0.0" || installed["libbase"] != "1.0.0" {
		t.Errorf("installed = %v", installed)
	}

	if h.registry.published["app"] != "2.0.0" || h.registry.published["libbase"] != "1.0.0" {
		t.Errorf("registry = %v", h.registry.published)
	}

	// Both packages ran the install-side lifecycle scripts.
	want := 0
	for _, call := range h.scripts.calls {
		if call == "install" {
			want++
		}
	}
	if want != 2 {
		t.Errorf("install script ran %d times, want 2: %v", want, h.scripts.calls)
	}

	// Metadata was recorded in the info directory for later removal.
	if _, err := os.Stat(filepath.Join(h.manager.Paths.InfoDir, "app."+metadata.FileName)); err != nil {
		t.Errorf("info metadata not recorded: %v", err)
	}

	// Temp workspace is cleaned after the transaction.
	if _, err := os.Stat(filepath.Join(h.manager.Paths.TempDir, "app")); !os.IsNotExist(err) {
		t.Error("temp workspace not cleaned")
	}
}

func TestInstallUnknownPackageLeavesNoTrace(t *testing.T) {
	f := newFixtures(t)
	f.add(meta("app", "1.0.0", "nosuch"), nil)

	h := newHarness(t, f)
	if err := h.manager.Install(context.Background(), "app", ""); !errors.Is(err, repo.ErrUnknownPackage) {
		t.Fatalf("error = %v, want ErrUnknownPackage", err)
	}

	// Resolution failed, so nothing was recorded or downloaded.
	if _, err := os.Stat(h.manager.Paths.StatusPath); !os.IsNotExist(err) {
		t.Error("status ledger written despite failed resolution")
	}
	if len(h.fetcher.calls) != 0 {
		t.Errorf("downloads attempted: %v", h.fetcher.calls)
	}
}

func TestInstallSkipsSatisfiedDependency(t *testing.T) {
	f := newFixtures(t)
	f.add(meta("libbase", "1.0.0"), nil)
	f.add(meta("app", "2.0.0", "libbase"), nil)

	h := newHarness(t, f)
	if err := h.manager.Install(context.Background(), "libbase", ""); err != nil {
		t.Fatal(err)
	}

	h.fetcher.calls = nil
	if err := h.manager.Install(context.Background(), "app", ""); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if len(h.fetcher.calls) != 1 || !strings.Contains(h.fetcher.calls[0], "app_2.0.0") {
		t.Errorf("downloads = %v, want only the app archive", h.fetcher.calls)
	}
}

func TestInstallUpgradesUnsatisfiedDependency(t *testing.T) {
	f := newFixtures(t)
	f.add(meta("libbase", "1.0.0"), nil)
	f.add(meta("libbase", "2.0.0"), nil)
	f.add(meta("app", "1.0.0", "libbase (>= 2.0.0)"), nil)

	h := newHarness(t, f)
	if err := h.manager.Install(context.Background(), "libbase", "1.0.0"); err != nil {
		t.Fatal(err)
	}

	h.fetcher.calls = nil
	if err := h.manager.Install(context.Background(), "app", ""); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	// The resolver re-pinned libbase to 2.0.0; that pin must be deployed,
	// not dropped because some libbase version is already installed.
	ok, err := h.manager.Ledger.IsInstalled("libbase", "2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("libbase 2.0.0 was planned but never installed")
	}
	if h.registry.published["libbase"] != "2.0.0" {
		t.Errorf("registry has libbase %q, want 2.0.0", h.registry.published["libbase"])
	}

	var fetchedNewPin bool
	for _, call := range h.fetcher.calls {
		if strings.Contains(call, "libbase_2.0.0") {
			fetchedNewPin = true
		}
	}
	if !fetchedNewPin {
		t.Errorf("downloads = %v, want the libbase 2.0.0 archive", h.fetcher.calls)
	}
}

func TestInstallDependencyConfirmationDeclined(t *testing.T) {
	f := newFixtures(t)
	f.add(meta("libbase", "1.0.0"), nil)
	f.add(meta("app", "2.0.0", "libbase"), nil)

	h := newHarness(t, f)
	h.manager.AssumeYes = false
	h.manager.In = strings.NewReader("n\n")

	if err := h.manager.Install(context.Background(), "app", ""); !errors.Is(err, ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if _, ok := h.registry.published["libbase"]; ok {
		t.Error("declined dependency was installed anyway")
	}
}

func TestInstallFailingScriptAborts(t *testing.T) {
	f := newFixtures(t)
	f.add(meta("app", "1.0.0"), nil)

	h := newHarness(t, f)
	h.scripts.failOn = "preinst"

	if err := h.manager.Install(context.Background(), "app", ""); err == nil {
		t.Fatal("Install should fail when a lifecycle script fails")
	}

	// The ledger keeps the half-installed state; nothing rolls back.
	records, err := h.manager.Ledger.PackageStatus("app")
	if err != nil {
		t.Fatal(err)
	}
	record := records["1.0.0"]
	if record.Status.Desired != status.DesiredInstall || record.Status.Current != status.CurrentHalfInstalled {
		t.Errorf("status = %+v, want (i, h)", record.Status)
	}
	if _, ok := h.registry.published["app"]; ok {
		t.Error("failed package must not reach the system registry")
	}
}

func TestRemove(t *testing.T) {
	f := newFixtures(t)
	f.add(meta("app", "1.0.0"), map[string]string{
		archive.ScriptsDir + "/remove.sh": "#!/bin/sh\n",
	})

	h := newHarness(t, f)
	if err := h.manager.Install(context.Background(), "app", ""); err != nil {
		t.Fatal(err)
	}

	h.scripts.calls = nil
	if err := h.manager.Remove(context.Background(), "app", true); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, ok := h.registry.published["app"]; ok {
		t.Error("package still in system registry after removal")
	}

	records, err := h.manager.Ledger.PackageStatus("app")
	if err != nil {
		t.Fatal(err)
	}
	record := records["1.0.0"]
	if record.Status.Desired != status.DesiredUnknown || record.Status.Current != status.CurrentNotInstalled {
		t.Errorf("status = %+v, want (u, n)", record.Status)
	}
	if record.RemoveDate == "" {
		t.Error("remove date not stamped")
	}

	// Removal-side scripts ran from the info directory.
	wantScripts := []string{"app.prerm", "app.remove", "app.postrm"}
	if len(h.scripts.calls) != len(wantScripts) {
		t.Fatalf("script calls = %v", h.scripts.calls)
	}
	for i, call := range h.scripts.calls {
		if call != wantScripts[i] {
			t.Errorf("script call %d = %q, want %q", i, call, wantScripts[i])
		}
	}

	// Info files are deleted.
	matches, _ := filepath.Glob(filepath.Join(h.manager.Paths.InfoDir, "app.*"))
	if len(matches) != 0 {
		t.Errorf("info files remain: %v", matches)
	}
}

func TestRemoveNotInstalled(t *testing.T) {
	f := newFixtures(t)
	f.add(meta("app", "1.0.0"), nil)

	h := newHarness(t, f)
	if err := h.manager.Remove(context.Background(), "app", true); !errors.Is(err, status.ErrNotInstalled) {
		t.Errorf("error = %v, want ErrNotInstalled", err)
	}
}

func TestRemoveWithDependenciesDeclined(t *testing.T) {
	f := newFixtures(t)
	f.add(meta("libbase", "1.0.0"), nil)
	f.add(meta("app", "2.0.0", "libbase"), nil)

	h := newHarness(t, f)
	if err := h.manager.Install(context.Background(), "app", ""); err != nil {
		t.Fatal(err)
	}

	h.manager.AssumeYes = false
	h.manager.In = strings.NewReader("\n")

	// Default answer for removal is no.
	if err := h.manager.Remove(context.Background(), "app", false); !errors.Is(err, ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}

	installed, err := h.manager.Ledger.AllInstalled()
	if err != nil {
		t.Fatal(err)
	}
	if len(installed) != 2 {
		t.Errorf("installed after declined removal = %v", installed)
	}
}

func TestUpgrade(t *testing.T) {
	f := newFixtures(t)
	f.add(meta("app", "1.0.0"), nil)
	f.add(meta("app", "2.0.0"), nil)
	f.add(meta("steady", "1.0.0"), nil)

	h := newHarness(t, f)
	if err := h.manager.Install(context.Background(), "app", "1.0.0"); err != nil {
		t.Fatal(err)
	}
	if err := h.manager.Install(context.Background(), "steady", ""); err != nil {
		t.Fatal(err)
	}

	// A package that vanished from the index is left untouched.
	delete(f.idx, "steady")

	result, err := h.manager.Upgrade(context.Background())
	if err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}

	// The full installed set comes back, with upgraded entries at their
	// new versions.
	if len(result) != 2 || result["app"] != "2.0.0" || result["steady"] != "1.0.0" {
		t.Errorf("result = %v, want app 2.0.0 and steady 1.0.0", result)
	}

	installed, err := h.manager.Ledger.AllInstalled()
	if err != nil {
		t.Fatal(err)
	}
	if installed["app"] != "2.0.0" {
		t.Errorf("app version after upgrade = %q", installed["app"])
	}
	if installed["steady"] != "1.0.0" {
		t.Errorf("steady should be untouched, got %q", installed["steady"])
	}
}

func TestClean(t *testing.T) {
	f := newFixtures(t)
	h := newHarness(t, f)

	junk := filepath.Join(h.manager.Paths.TempDir, "junk.tar.gz")
	if err := os.WriteFile(junk, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(h.manager.Paths.IndexCachePath, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := h.manager.Clean(); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	if _, err := os.Stat(junk); !os.IsNotExist(err) {
		t.Error("temp contents not removed")
	}
	if _, err := os.Stat(h.manager.Paths.TempDir); err != nil {
		t.Error("temp dir should be recreated")
	}
	if _, err := os.Stat(h.manager.Paths.IndexCachePath); !os.IsNotExist(err) {
		t.Error("index cache not removed")
	}
}

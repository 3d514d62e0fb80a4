package repo

import (
	"errors"
	"path/filepath"
	"testing"

	"pmt/internal/metadata"
	"pmt/internal/version"
)

func testIndex() Index {
	return Index{
		"libfoo": {
			"1.9.9":  {Filename: "libfoo_1.9.9_x64.tar.gz", Metadata: metadata.Metadata{Description: "old"}},
			"1.10.0": {Filename: "libfoo_1.10.0_x64.tar.gz", Metadata: metadata.Metadata{Description: "new"}},
			"2.0.0":  {Filename: "libfoo_2.0.0_x64.tar.gz", Metadata: metadata.Metadata{Description: "newest"}},
		},
		"libbar": {
			"3.0.0": {Metadata: metadata.Metadata{}},
			"4.0.0": {Metadata: metadata.Metadata{}},
		},
	}
}

func TestMetadataFor(t *testing.T) {
	idx := testIndex()

	m, err := idx.MetadataFor("libfoo", "1.9.9")
	if err != nil {
		t.Fatalf("explicit version failed: %v", err)
	}
	if m.Name != "libfoo" || m.Version != "1.9.9" || m.Description != "old" {
		t.Errorf("MetadataFor explicit = %+v", m)
	}

	// Omitted version picks the component-wise maximum, not the
	// lexicographic one.
	m, err = idx.MetadataFor("libfoo", "")
	if err != nil {
		t.Fatalf("latest version failed: %v", err)
	}
	if m.Version != "2.0.0" {
		t.Errorf("MetadataFor latest = %q, want 2.0.0", m.Version)
	}

	if _, err := idx.MetadataFor("nosuch", ""); !errors.Is(err, ErrUnknownPackage) {
		t.Errorf("unknown package: error = %v, want ErrUnknownPackage", err)
	}
}

func TestLatestVersionOrdersNumerically(t *testing.T) {
	idx := Index{
		"p": {
			"1.9.9":  {},
			"1.10.0": {},
		},
	}
	latest, err := idx.LatestVersion("p")
	if err != nil {
		t.Fatal(err)
	}
	if latest != "1.10.0" {
		t.Errorf("LatestVersion = %q, want 1.10.0", latest)
	}
}

func TestLatestSatisfying(t *testing.T) {
	idx := testIndex()

	tests := []struct {
		name       string
		pkg        string
		comparator version.Comparator
		required   string
		want       string
		wantErr    error
	}{
		{name: "unconstrained picks maximum", pkg: "libbar", comparator: version.Eq, required: "", want: "4.0.0"},
		{name: "gte selects qualifying version", pkg: "libbar", comparator: version.Gte, required: "4.0.0", want: "4.0.0"},
		{name: "lt selects lower bound", pkg: "libbar", comparator: version.Lt, required: "4.0.0", want: "3.0.0"},
		{name: "nothing qualifies", pkg: "libbar", comparator: version.Gt, required: "4.0.0", wantErr: ErrUnsatisfiable},
		{name: "unknown package", pkg: "nosuch", comparator: version.Gte, required: "1.0.0", wantErr: ErrUnknownPackage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.LatestSatisfying(tt.pkg, tt.comparator, tt.required)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LatestSatisfying failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("LatestSatisfying = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeLaterSourceWins(t *testing.T) {
	idx := Index{
		"libfoo": {"1.0.0": {Metadata: metadata.Metadata{Description: "first"}}},
		"libbar": {"1.0.0": {}},
	}
	idx.Merge(Index{
		"libfoo": {"2.0.0": {Metadata: metadata.Metadata{Description: "second"}}},
	})

	if _, err := idx.Entry("libfoo", "1.0.0"); err == nil {
		t.Error("merge should replace the whole version map for a colliding name")
	}
	entry, err := idx.Entry("libfoo", "2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Metadata.Description != "second" {
		t.Errorf("entry = %+v", entry)
	}
	if _, err := idx.Entry("libbar", "1.0.0"); err != nil {
		t.Errorf("untouched package lost in merge: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFile)

	idx := testIndex()
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	entry, err := got.Entry("libfoo", "1.10.0")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Filename != "libfoo_1.10.0_x64.tar.gz" {
		t.Errorf("entry after round trip = %+v", entry)
	}
}

package api

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/lib/pq"

	"pmt/internal/archive"
	"pmt/internal/db"
	"pmt/internal/metadata"
	"pmt/internal/repo"
	"pmt/internal/security"
)

// healthHandler returns API health status
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.Health(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database connection failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "pmt-api",
		"version": "1.0.0",
	})
}

// indexHandler serves every published package version in the packages.json
// wire format the CLI consumes.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := s.DB.ListIndex()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build index")
		return
	}

	idx := repo.Index{}
	for _, row := range rows {
		entry := repo.Entry{Metadata: rowMetadata(row)}
		if row.Filename != nil {
			entry.Filename = *row.Filename
		}
		if row.SHA256 != nil {
			entry.Hash = *row.SHA256
		}

		if idx[row.Name] == nil {
			idx[row.Name] = make(map[string]repo.Entry)
		}
		idx[row.Name][row.PackageVersion.Version] = entry
	}

	writeJSON(w, http.StatusOK, idx)
}

// getPackageHandler gets package information
func (s *Server) getPackageHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	pkg, err := s.DB.GetPackage(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Package not found")
		return
	}

	writeJSON(w, http.StatusOK, pkg)
}

// getPackageVersionHandler gets specific package version
func (s *Server) getPackageVersionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]
	version := vars["version"]

	pkgVersion, err := s.DB.GetPackageVersion(name, version)
	if err != nil {
		writeError(w, http.StatusNotFound, "Package version not found")
		return
	}

	writeJSON(w, http.StatusOK, pkgVersion)
}

// publishPackageHandler handles package publishing
func (s *Server) publishPackageHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	metadataFile, _, err := r.FormFile("metadata")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Metadata file required")
		return
	}
	defer metadataFile.Close()

	raw, err := io.ReadAll(metadataFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read metadata")
		return
	}
	m, err := metadata.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid metadata: %v", err))
		return
	}

	archiveFile, _, err := r.FormFile("archive")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Archive file required")
		return
	}
	defer archiveFile.Close()

	// Save the archive under its canonical filename, hashing as we go
	filename := archive.FileName(m.Name, m.Version)
	blobPath := filepath.Join(s.Config.StoragePath, filename)

	outFile, err := os.Create(blobPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save archive")
		return
	}

	hasher := sha256.New()
	size, err := io.Copy(outFile, io.TeeReader(archiveFile, hasher))
	outFile.Close()
	if err != nil {
		os.Remove(blobPath)
		writeError(w, http.StatusInternalServerError, "Failed to save archive")
		return
	}
	hash := fmt.Sprintf("%x", hasher.Sum(nil))

	// Reject malformed or unsafe archives before they enter the index
	validator := security.NewArchiveValidator(nil)
	if err := validator.ValidateArchive(blobPath); err != nil {
		os.Remove(blobPath)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Archive rejected: %v", err))
		return
	}

	pkg, err := s.DB.GetOrCreatePackage(m.Name)
	if err != nil {
		os.Remove(blobPath)
		writeError(w, http.StatusInternalServerError, "Failed to create package")
		return
	}

	version := db.PackageVersion{
		PackageID:     pkg.ID,
		Version:       m.Version,
		Description:   strPtr(m.Description),
		Maintainer:    strPtr(m.Maintainer),
		Homepage:      strPtr(m.Homepage),
		Specification: strPtr(m.Specification),
		Dependencies:  pq.StringArray(m.Dependencies),
		SHA256:        &hash,
		SizeBytes:     intPtr(int(size)),
		Filename:      &filename,
		BlobPath:      &blobPath,
	}

	createdVersion, err := s.DB.CreatePackageVersion(version)
	if err != nil {
		os.Remove(blobPath)
		writeError(w, http.StatusConflict, "Package version already exists or creation failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"name":    m.Name,
		"version": m.Version,
		"sha256":  hash,
		"size":    size,
		"id":      createdVersion.ID,
	})
}

// downloadBlobHandler handles archive downloads by content hash
func (s *Server) downloadBlobHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hash := vars["sha256"]

	if hash == "" {
		writeError(w, http.StatusBadRequest, "SHA256 required")
		return
	}

	pkgVersion, err := s.DB.GetBlobBySHA256(hash)
	if err != nil || pkgVersion.BlobPath == nil {
		writeError(w, http.StatusNotFound, "Blob not found")
		return
	}

	file, err := os.Open(*pkgVersion.BlobPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read blob")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get file info")
		return
	}

	name := filepath.Base(*pkgVersion.BlobPath)
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	http.ServeContent(w, r, "", info.ModTime(), file)
}

func rowMetadata(row db.IndexRow) metadata.Metadata {
	m := metadata.Metadata{
		Name:         row.Name,
		Version:      row.PackageVersion.Version,
		Dependencies: []string(row.Dependencies),
	}
	if row.Description != nil {
		m.Description = *row.Description
	}
	if row.Maintainer != nil {
		m.Maintainer = *row.Maintainer
	}
	if row.Homepage != nil {
		m.Homepage = *row.Homepage
	}
	if row.Specification != nil {
		m.Specification = *row.Specification
	}
	return m
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(n int) *int {
	return &n
}

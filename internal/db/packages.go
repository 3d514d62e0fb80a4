package db

import (
	"database/sql"
	"errors"
)

// GetOrCreatePackage gets an existing package or creates a new one
func (db *DB) GetOrCreatePackage(name string) (*Package, error) {
	pkg, err := db.GetPackage(name)
	if err == nil {
		return pkg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	query := `
        INSERT INTO packages (name)
        VALUES ($1)
        RETURNING id, name, created_at`

	var newPkg Package
	if err := db.Get(&newPkg, query, name); err != nil {
		return nil, err
	}

	return &newPkg, nil
}

// GetPackage retrieves a package by name
func (db *DB) GetPackage(name string) (*Package, error) {
	query := `SELECT id, name, created_at FROM packages WHERE name = $1`

	var pkg Package
	if err := db.Get(&pkg, query, name); err != nil {
		return nil, err
	}

	return &pkg, nil
}

// CreatePackageVersion creates a new package version
func (db *DB) CreatePackageVersion(version PackageVersion) (*PackageVersion, error) {
	query := `
        INSERT INTO package_versions
        (package_id, version, description, maintainer, homepage, specification,
         dependencies, sha256, size_bytes, filename, blob_path)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id, package_id, version, description, maintainer, homepage,
                  specification, dependencies, sha256, size_bytes, filename,
                  blob_path, created_at`

	var newVersion PackageVersion
	err := db.Get(&newVersion, query,
		version.PackageID,
		version.Version,
		version.Description,
		version.Maintainer,
		version.Homepage,
		version.Specification,
		version.Dependencies,
		version.SHA256,
		version.SizeBytes,
		version.Filename,
		version.BlobPath,
	)
	if err != nil {
		return nil, err
	}

	return &newVersion, nil
}

// GetPackageVersion retrieves a specific version of a package
func (db *DB) GetPackageVersion(name, version string) (*PackageVersion, error) {
	query := `
		SELECT pv.id, pv.package_id, pv.version, pv.description, pv.maintainer,
		       pv.homepage, pv.specification, pv.dependencies, pv.sha256,
		       pv.size_bytes, pv.filename, pv.blob_path, pv.created_at
		FROM package_versions pv
		JOIN packages p ON p.id = pv.package_id
		WHERE p.name = $1 AND pv.version = $2`

	var pkgVersion PackageVersion
	if err := db.Get(&pkgVersion, query, name, version); err != nil {
		return nil, err
	}

	return &pkgVersion, nil
}

// GetBlobBySHA256 retrieves the stored blob path for a content hash
func (db *DB) GetBlobBySHA256(sha256 string) (*PackageVersion, error) {
	query := `
		SELECT id, package_id, version, description, maintainer, homepage,
		       specification, dependencies, sha256, size_bytes, filename,
		       blob_path, created_at
		FROM package_versions
		WHERE sha256 = $1`

	var pkgVersion PackageVersion
	if err := db.Get(&pkgVersion, query, sha256); err != nil {
		return nil, err
	}

	return &pkgVersion, nil
}

// ListIndex returns every published (package, version) pair for the index
// endpoint.
func (db *DB) ListIndex() ([]IndexRow, error) {
	query := `
		SELECT p.name, pv.id, pv.package_id, pv.version, pv.description,
		       pv.maintainer, pv.homepage, pv.specification, pv.dependencies,
		       pv.sha256, pv.size_bytes, pv.filename, pv.blob_path, pv.created_at
		FROM packages p
		JOIN package_versions pv ON p.id = pv.package_id
		ORDER BY p.name, pv.version`

	var rows []IndexRow
	if err := db.Select(&rows, query); err != nil {
		return nil, err
	}

	return rows, nil
}

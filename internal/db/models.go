package db

import (
	"time"

	"github.com/lib/pq"
)

// Package represents a package in the registry
type Package struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PackageVersion represents a specific published version of a package
type PackageVersion struct {
	ID            int            `db:"id" json:"id"`
	PackageID     int            `db:"package_id" json:"package_id"`
	Version       string         `db:"version" json:"version"`
	Description   *string        `db:"description" json:"description"`
	Maintainer    *string        `db:"maintainer" json:"maintainer"`
	Homepage      *string        `db:"homepage" json:"homepage"`
	Specification *string        `db:"specification" json:"specification"`
	Dependencies  pq.StringArray `db:"dependencies" json:"dependencies"`
	SHA256        *string        `db:"sha256" json:"sha256"`
	SizeBytes     *int           `db:"size_bytes" json:"size_bytes"`
	Filename      *string        `db:"filename" json:"filename"`
	BlobPath      *string        `db:"blob_path" json:"blob_path"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Token represents an issued API session token, stored by salted hash
type Token struct {
	ID        int        `db:"id" json:"id"`
	TokenHash string     `db:"token_hash" json:"token_hash"`
	Name      *string    `db:"name" json:"name"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the token is past its expiry at the given time.
// A token without an expiry never expires.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// IndexRow is one (package, version) pair as the index endpoint serves it
type IndexRow struct {
	Name string `db:"name"`
	PackageVersion
}

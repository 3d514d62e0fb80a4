package db

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// DB holds the database connection
type DB struct {
	*sqlx.DB
}

// Connect establishes a connection to the database
func Connect(databaseURL string) (*DB, error) {
	sqlxDB, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := sqlxDB.Ping(); err != nil {
		sqlxDB.Close()
		return nil, err
	}

	return &DB{sqlxDB}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health checks if the database connection is healthy
func (db *DB) Health() error {
	return db.Ping()
}

// Migrate creates the schema when it does not exist yet
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS packages (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS package_versions (
		id SERIAL PRIMARY KEY,
		package_id INTEGER NOT NULL REFERENCES packages(id),
		version TEXT NOT NULL,
		description TEXT,
		maintainer TEXT,
		homepage TEXT,
		specification TEXT,
		dependencies TEXT[] NOT NULL DEFAULT '{}',
		sha256 TEXT,
		size_bytes INTEGER,
		filename TEXT,
		blob_path TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (package_id, version)
	);

	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_login TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT true
	);

	CREATE TABLE IF NOT EXISTS tokens (
		id SERIAL PRIMARY KEY,
		token_hash TEXT NOT NULL UNIQUE,
		name TEXT,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`

	_, err := db.Exec(schema)
	return err
}

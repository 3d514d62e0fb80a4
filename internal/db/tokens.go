package db

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrTokenExpired marks a token that exists but is past its expiry
var ErrTokenExpired = errors.New("token has expired")

// CreateToken records an issued token by its salted hash. expiresAt bounds
// the token's life; ValidateToken refuses it afterwards even when the row
// still exists.
func (db *DB) CreateToken(tokenHash string, name *string, expiresAt time.Time) (*Token, error) {
	query := `
        INSERT INTO tokens (token_hash, name, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id, token_hash, name, expires_at, created_at`

	var token Token
	if err := db.Get(&token, query, tokenHash, name, expiresAt); err != nil {
		return nil, err
	}

	return &token, nil
}

// ValidateToken looks up a token by hash and enforces its expiry
func (db *DB) ValidateToken(tokenHash string) (*Token, error) {
	query := `
		SELECT id, token_hash, name, expires_at, created_at
		FROM tokens
		WHERE token_hash = $1`

	var token Token
	if err := db.Get(&token, query, tokenHash); err != nil {
		return nil, err
	}

	if token.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}

	return &token, nil
}

// RevokeToken deletes a token by hash, ending its session immediately. A
// hash with no row is not an error; revocation is idempotent.
func (db *DB) RevokeToken(tokenHash string) error {
	_, err := db.Exec(`DELETE FROM tokens WHERE token_hash = $1`, tokenHash)
	return err
}

// PurgeExpiredTokens drops every token past its expiry
func (db *DB) PurgeExpiredTokens() (int64, error) {
	result, err := db.Exec(`DELETE FROM tokens WHERE expires_at IS NOT NULL AND expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// HashToken derives the salted SHA256 hash under which a token is stored.
// Only hashes touch the database; the raw token never does.
func HashToken(token string, salt string) string {
	sum := sha256.Sum256([]byte(token + salt))
	return hex.EncodeToString(sum[:])
}

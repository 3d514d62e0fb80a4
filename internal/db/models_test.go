package db

import (
	"testing"
	"time"
)

func TestHashToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		salt  string
	}{
		{name: "basic token hashing", token: "test-token", salt: "test-salt"},
		{name: "empty token", token: "", salt: "salt"},
		{name: "empty salt", token: "token", salt: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HashToken(tt.token, tt.salt)
			// Check that we get a consistent hash (64 char hex string)
			if len(result) != 64 {
				t.Errorf("HashToken() returned hash of length %d, expected 64", len(result))
			}

			// Test that same inputs produce same output
			result2 := HashToken(tt.token, tt.salt)
			if result != result2 {
				t.Errorf("HashToken() is not deterministic: %q != %q", result, result2)
			}

			// Test that different inputs produce different outputs
			different := HashToken(tt.token+"x", tt.salt)
			if result == different {
				t.Errorf("HashToken() produced same hash for different inputs")
			}
		})
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		expected  bool
	}{
		{name: "no expiry never expires", expiresAt: nil, expected: false},
		{name: "future expiry still valid", expiresAt: &future, expected: false},
		{name: "past expiry rejected", expiresAt: &past, expected: true},
		{name: "exact expiry instant still valid", expiresAt: &now, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := Token{ExpiresAt: tt.expiresAt}
			if got := token.Expired(now); got != tt.expected {
				t.Errorf("Expired() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserRoleHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		role     UserRole
		action   string
		expected bool
	}{
		{name: "user can read", role: RoleUser, action: "read", expected: true},
		{name: "user cannot publish", role: RoleUser, action: "publish", expected: false},
		{name: "publisher can publish", role: RolePublisher, action: "publish", expected: true},
		{name: "publisher cannot admin", role: RolePublisher, action: "admin", expected: false},
		{name: "admin can do everything", role: RoleAdmin, action: "admin", expected: true},
		{name: "unknown action denied", role: RoleAdmin, action: "launch", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.HasPermission(tt.action); got != tt.expected {
				t.Errorf("HasPermission(%q) = %v, want %v", tt.action, got, tt.expected)
			}
		})
	}
}

func TestUserRoleScan(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected UserRole
		wantErr  bool
	}{
		{name: "string value", value: "publisher", expected: RolePublisher},
		{name: "nil defaults to user", value: nil, expected: RoleUser},
		{name: "non-string errors", value: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var role UserRole
			err := role.Scan(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Scan() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan() error: %v", err)
			}
			if role != tt.expected {
				t.Errorf("Scan(%v) = %q, want %q", tt.value, role, tt.expected)
			}
		})
	}
}

package db

import (
	"database/sql/driver"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserRole represents user access levels
type UserRole string

const (
	RoleUser      UserRole = "user"
	RolePublisher UserRole = "publisher"
	RoleAdmin     UserRole = "admin"
)

// Value implements the driver.Valuer interface for database storage
func (r UserRole) Value() (driver.Value, error) {
	return string(r), nil
}

// Scan implements the sql.Scanner interface for database retrieval
func (r *UserRole) Scan(value interface{}) error {
	if value == nil {
		*r = RoleUser
		return nil
	}
	if str, ok := value.(string); ok {
		*r = UserRole(str)
		return nil
	}
	return errors.New("cannot scan UserRole")
}

// HasPermission checks if a user role has permission for a specific action
func (r UserRole) HasPermission(action string) bool {
	switch action {
	case "read":
		return r == RoleUser || r == RolePublisher || r == RoleAdmin
	case "publish":
		return r == RolePublisher || r == RoleAdmin
	case "admin":
		return r == RoleAdmin
	default:
		return false
	}
}

// User represents a user account
type User struct {
	ID           int        `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         UserRole   `json:"role" db:"role"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastLogin    *time.Time `json:"last_login" db:"last_login"`
	IsActive     bool       `json:"is_active" db:"is_active"`
}

// CreateUserRequest represents user registration data
type CreateUserRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     UserRole `json:"role"`
}

// CreateUser creates a new user account
func (db *DB) CreateUser(req CreateUserRequest) (*User, error) {
	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, password_hash, role, created_at, updated_at, last_login, is_active`

	var user User
	err = db.Get(&user, query, req.Username, req.Email, string(hashedPassword), req.Role)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(username string) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, role, created_at, updated_at, last_login, is_active
		FROM users
		WHERE username = $1 AND is_active = true`

	var user User
	if err := db.Get(&user, query, username); err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(id int) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, role, created_at, updated_at, last_login, is_active
		FROM users
		WHERE id = $1 AND is_active = true`

	var user User
	if err := db.Get(&user, query, id); err != nil {
		return nil, err
	}

	return &user, nil
}

// ValidatePassword checks if the provided password matches the user's password
func (db *DB) ValidatePassword(user *User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	return err == nil
}

// UpdateLastLogin updates the user's last login timestamp
func (db *DB) UpdateLastLogin(userID int) error {
	query := `UPDATE users SET last_login = now() WHERE id = $1`
	_, err := db.Exec(query, userID)
	return err
}

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"pmt/internal/auth"
	"pmt/internal/db"
)

// loginRequest carries user credentials
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// registerHandler handles user registration
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req db.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username, email, and password are required")
		return
	}

	if len(req.Username) < 3 || len(req.Username) > 50 {
		writeError(w, http.StatusBadRequest, "Username must be between 3 and 50 characters")
		return
	}

	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters long")
		return
	}

	// Default role is user unless specified by admin
	if req.Role == "" {
		req.Role = db.RoleUser
	}

	// Only admins can create accounts with publisher or admin roles
	if req.Role != db.RoleUser {
		user := getUserFromContext(r.Context())
		if user == nil || !user.Role.HasPermission("admin") {
			writeError(w, http.StatusForbidden, "Only admins can create accounts with elevated permissions")
			return
		}
	}

	user, err := s.DB.CreateUser(req)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			writeError(w, http.StatusConflict, "Username or email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"created_at": user.CreatedAt,
	})
}

// loginHandler authenticates a user and issues a JWT
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := s.DB.GetUserByUsername(req.Username)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !s.DB.ValidatePassword(user, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	jwtManager := auth.NewJWTManager(s.Config.JWTSecret, auth.DefaultTokenDuration)
	tokenString, expiresAt, err := jwtManager.GenerateToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	// Record the salted token hash so the session can be revoked later
	tokenHash := db.HashToken(tokenString, s.Config.TokenSalt)
	if _, err := s.DB.CreateToken(tokenHash, &user.Username, expiresAt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	if err := s.DB.UpdateLastLogin(user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update last login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      tokenString,
		"expires_at": expiresAt,
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
	})
}

// logoutHandler revokes the presented token, ending the session before the
// JWT itself expires.
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "Bearer token required")
		return
	}

	if err := s.DB.RevokeToken(db.HashToken(token, s.Config.TokenSalt)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to revoke token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// profileHandler returns current user profile
func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"created_at": user.CreatedAt,
		"updated_at": user.UpdatedAt,
		"last_login": user.LastLogin,
	})
}

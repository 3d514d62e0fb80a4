package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouteMetadata contains metadata for a route
type RouteMetadata struct {
	Path                   string
	Method                 string
	RequiresAuthentication bool
	RequiredRole           string
	Handler                http.HandlerFunc
	Description            string
	RateLimit              int // requests per minute, 0 = no limit
}

// RouteRegistry manages route metadata and registration
type RouteRegistry struct {
	routes []RouteMetadata
}

// NewRouteRegistry creates a new route registry
func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{
		routes: make([]RouteMetadata, 0),
	}
}

// RegisterRoute registers a public route with metadata
func (rr *RouteRegistry) RegisterRoute(path, method string, handler http.HandlerFunc, description string, rateLimit int) {
	rr.routes = append(rr.routes, RouteMetadata{
		Path:        path,
		Method:      method,
		Handler:     handler,
		Description: description,
		RateLimit:   rateLimit,
	})
}

// RegisterProtectedRoute registers a route that requires authentication and a
// minimum role.
func (rr *RouteRegistry) RegisterProtectedRoute(path, method, role string, handler http.HandlerFunc, description string, rateLimit int) {
	rr.routes = append(rr.routes, RouteMetadata{
		Path:                   path,
		Method:                 method,
		RequiresAuthentication: true,
		RequiredRole:           role,
		Handler:                handler,
		Description:            description,
		RateLimit:              rateLimit,
	})
}

// GetRouteMetadata retrieves metadata for a specific route
func (rr *RouteRegistry) GetRouteMetadata(path, method string) (RouteMetadata, bool) {
	for _, route := range rr.routes {
		if route.Path == path && route.Method == method {
			return route, true
		}
	}
	return RouteMetadata{}, false
}

// GetAllRoutes returns all registered routes
func (rr *RouteRegistry) GetAllRoutes() []RouteMetadata {
	return rr.routes
}

// SetupRoutes configures all routes with their metadata
func (s *Server) SetupRoutes(router *mux.Router) *RouteRegistry {
	registry := NewRouteRegistry()

	// Create API v1 subrouter
	api := router.PathPrefix("/v1").Subrouter()

	// Health endpoint - public, no auth required
	registry.RegisterRoute("/v1/health", "GET", s.healthHandler, "API health check", 0)
	api.HandleFunc("/health", s.healthHandler).Methods("GET")

	// Repository index in the packages.json wire format - public
	registry.RegisterRoute("/v1/index", "GET", s.indexHandler, "Repository index", 60)
	api.HandleFunc("/index", s.indexHandler).Methods("GET")

	// Blob download - public, with rate limiting for abuse prevention
	registry.RegisterRoute("/v1/blobs/{sha256}", "GET", s.downloadBlobHandler, "Download package archive", 30)
	api.HandleFunc("/blobs/{sha256}", s.downloadBlobHandler).Methods("GET")

	// Package metadata lookups - public
	registry.RegisterRoute("/v1/packages/{name}/versions/{version}", "GET", s.getPackageVersionHandler, "Get package version", 120)
	api.HandleFunc("/packages/{name}/versions/{version}", s.getPackageVersionHandler).Methods("GET")

	registry.RegisterRoute("/v1/packages/{name}", "GET", s.getPackageHandler, "Get package details", 120)
	api.HandleFunc("/packages/{name}", s.getPackageHandler).Methods("GET")

	// Publishing - requires a publisher token
	registry.RegisterProtectedRoute("/v1/packages", "POST", "publisher", s.publishPackageHandler, "Publish package", 10)
	api.HandleFunc("/packages", s.publishPackageHandler).Methods("POST")

	// Account endpoints
	registry.RegisterRoute("/v1/auth/register", "POST", s.registerHandler, "Register account", 10)
	api.HandleFunc("/auth/register", s.registerHandler).Methods("POST")

	registry.RegisterRoute("/v1/auth/login", "POST", s.loginHandler, "Login", 10)
	api.HandleFunc("/auth/login", s.loginHandler).Methods("POST")

	registry.RegisterProtectedRoute("/v1/auth/logout", "POST", "user", s.logoutHandler, "Revoke the presented token", 10)
	api.HandleFunc("/auth/logout", s.logoutHandler).Methods("POST")

	registry.RegisterProtectedRoute("/v1/auth/profile", "GET", "user", s.profileHandler, "Current user profile", 60)
	api.HandleFunc("/auth/profile", s.profileHandler).Methods("GET")

	return registry
}

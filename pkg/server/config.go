package server

import "time"

// Config holds feed server configuration settings
type Config struct {
	Host           string        // Server host address
	Port           int           // Server port
	ReadTimeout    time.Duration // HTTP read timeout
	WriteTimeout   time.Duration // HTTP write timeout
	IdleTimeout    time.Duration // HTTP idle timeout
	MaxRequestSize int64         // Maximum request body size in bytes
	EnableCORS     bool          // Enable CORS middleware
	AllowedOrigins []string      // CORS allowed origins
	EnableLogging  bool          // Enable request logging

	// TLS/SSL configuration
	EnableTLS   bool   // Enable TLS/SSL
	TLSCertFile string // Path to TLS certificate file
	TLSKeyFile  string // Path to TLS private key file

	// Authentication configuration
	EnableAuth    bool   // Require tokens on feed and watch endpoints
	AdminUser     string // Bootstrap admin username (created at startup when auth is on)
	AdminPassword string // Bootstrap admin password

	// GraphQL configuration
	EnableGraphQL bool // Enable GraphQL API endpoint
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           4321,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		EnableLogging:  true,
		EnableTLS:      false, // TLS disabled by default
		TLSCertFile:    "",
		TLSKeyFile:     "",
		EnableAuth:     false, // Auth disabled by default (opt-in feature)
		AdminUser:      "admin",
		AdminPassword:  "",
		EnableGraphQL:  false, // GraphQL disabled by default (opt-in feature)
	}
}

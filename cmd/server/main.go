package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mnohosten/laura-flow/pkg/feed"
	"github.com/mnohosten/laura-flow/pkg/server"
)

func main() {
	// Parse command-line flags
	host := flag.String("host", "localhost", "Server host address")
	port := flag.Int("port", 4321, "Server port")
	feeds := flag.String("feeds", "default", "Comma-separated names of writable document feeds to serve")
	corsOrigin := flag.String("cors-origin", "*", "CORS allowed origin")
	enableTLS := flag.Bool("tls", false, "Enable TLS/SSL")
	tlsCert := flag.String("tls-cert", "", "Path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "Path to TLS private key file")
	enableAuth := flag.Bool("auth", false, "Require authentication on feed and watch endpoints")
	adminUser := flag.String("admin-user", "admin", "Bootstrap admin username (with -auth)")
	adminPassword := flag.String("admin-password", "", "Bootstrap admin password (with -auth)")
	enableGraphQL := flag.Bool("graphql", false, "Enable GraphQL API endpoint (/graphql) and GraphiQL playground (/graphiql)")
	flag.Parse()

	// Build the registry of served feeds
	registry := feed.NewRegistry()
	for _, name := range strings.Split(*feeds, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := registry.Register(feed.NewDocumentFeed(name, feed.NewDocumentSource())); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to register feed %q: %v\n", name, err)
			os.Exit(1)
		}
	}

	// Create server configuration
	config := server.DefaultConfig()
	config.Host = *host
	config.Port = *port
	config.AllowedOrigins = []string{*corsOrigin}
	config.EnableTLS = *enableTLS
	config.TLSCertFile = *tlsCert
	config.TLSKeyFile = *tlsKey
	config.EnableAuth = *enableAuth
	config.AdminUser = *adminUser
	config.AdminPassword = *adminPassword
	config.EnableGraphQL = *enableGraphQL

	// Create and start server
	srv, err := server.New(config, registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	// Start server (blocks until shutdown)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

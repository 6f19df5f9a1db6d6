//go:build integration

// Package integration provides integration tests for remote databases.
//
// These tests require Docker and serve database files from an nginx
// container using testcontainers.
// Run with: go test -tags=integration ./integration/...
package integration

// Package main provides the entry point for minikv-server.
//
// The server holds a sharded in-memory key-value store and serves it over
// the frame protocol (GET and SET). When metrics are enabled it also runs
// an admin HTTP server with /metrics, /healthz, /readyz, /status and
// /version.
//
// Usage:
//
//	minikv-server [flags]
//	minikv-server -config /path/to/config.yaml
//	minikv-server -addr 0.0.0.0:6379 -shards 64 -log-level debug
//
// Configuration is read from the YAML file, then MINIKV_* environment
// variables, then flags. Changes to log.level in the file apply without a
// restart.
package main

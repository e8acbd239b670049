// Package config provides minikv-cli configuration.
//
// Settings come from ~/.minikv/cli.yaml, then MINIKV_CLI_* environment
// variables; command-line flags override both. Keys: server, output,
// timeout and history.
package config

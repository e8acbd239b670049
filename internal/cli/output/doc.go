// Package output renders minikv-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned FIELD/VALUE tables
//   - json.go: JSON output for scripting
//   - progress.go: request progress for long-running commands
package output

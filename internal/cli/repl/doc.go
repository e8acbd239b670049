// Package repl provides the interactive mode of minikv-cli.
//
//   - repl.go: read-eval-print loop and command dispatch
//   - history.go: command history persistence
//
// Each input line is one command: GET key, SET key value, HELP or EXIT.
// The value of SET is the rest of the line after the key.
package repl

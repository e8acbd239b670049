// Package main provides the entry point for minikv-cli.
//
// minikv-cli talks to minikv-server over the frame protocol. It supports
// single commands (get, set), an interactive REPL and a load generator
// (bench) that funnels many producers through one connection.
package main

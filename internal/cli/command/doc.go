// Package command provides the minikv-cli command definitions.
//
// Commands are built with urfave/cli/v2:
//
//   - root.go: App, global flags and their merge with the CLI config file
//   - kv.go: get and set
//   - bench.go: load generator sharing one connection between many
//     producers through client.Manager
//   - interactive.go: interactive mode
package command

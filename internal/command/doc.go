// Package command maps request frames to minikv commands and back.
//
// Supported commands:
//   - GET key        → Bulk value, or Null when absent
//   - SET key value  → Simple "OK"
//
// Requests are arrays whose elements are bulk or simple strings. Command
// names are case-insensitive. A request that is not shaped like that, or
// has the wrong number of arguments, is a protocol error. A well-formed
// request naming any other command yields ErrUnsupported.
package command

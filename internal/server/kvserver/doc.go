// Package kvserver serves the minikv key-value store over the frame
// protocol.
//
// Every accepted connection is handled by its own goroutine that reads one
// request frame at a time, applies it to the shared store and writes the
// reply before reading the next request. Supported commands:
//
//   - GET key          -> bulk value, or null when the key is absent
//   - SET key value    -> +OK
//
// Malformed input, unsupported commands and I/O errors end the offending
// connection only. A panic while serving one connection is recovered and
// logged; the accept loop and other connections keep running.
package kvserver

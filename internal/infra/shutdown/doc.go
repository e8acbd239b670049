// Package shutdown coordinates graceful process termination.
//
// Hooks registered with OnShutdown run in reverse registration order once
// SIGINT or SIGTERM arrives, Trigger is called, or the parent context ends.
// All hooks share one context bounded by the handler timeout.
package shutdown

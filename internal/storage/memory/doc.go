// Package memory provides the in-memory key-value store for minikv.
//
// The store is a fixed set of shards built on pkg/cmap. It is created once
// at startup and shared by pointer with every connection goroutine. Each
// Get or Set locks exactly one shard for the duration of the map access
// and releases it before returning, so callers never hold a store lock
// while doing network I/O.
//
// Values are copied on the way in and on the way out; callers may reuse
// or mutate their slices freely.
package memory

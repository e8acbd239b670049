// Package cmap provides the sharded map behind the minikv store.
//
// Keys are strings. Each key is assigned to exactly one shard with
// MurmurHash3 modulo the shard count, so the assignment is stable for the
// lifetime of a map and across processes. Every shard is guarded by its
// own mutex; an operation on one shard never waits for another.
//
// Usage:
//
//	m := cmap.NewWithShards[[]byte](5)
//	m.Set("foo", []byte("bar"))
//	val, ok := m.Get("foo")
//
// Values are stored as given. Callers that hand out mutable values (such
// as byte slices) are responsible for copying.
package cmap

package cmap

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is used when a non-positive shard count is requested.
const DefaultShardCount = 16

// Map is a concurrent-safe sharded map with string keys.
type Map[V any] struct {
	shards []*shard[V]
}

type shard[V any] struct {
	mu    sync.Mutex
	items map[string]V
}

// ShardStat reports the size of one shard.
type ShardStat struct {
	Index int
	Count int
}

// New creates a map with DefaultShardCount shards.
func New[V any]() *Map[V] {
	return NewWithShards[V](DefaultShardCount)
}

// NewWithShards creates a map with exactly shardCount shards.
// Any positive count is accepted; the count never changes afterwards.
func NewWithShards[V any](shardCount int) *Map[V] {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}

	m := &Map[V]{shards: make([]*shard[V], shardCount)}
	for i := range m.shards {
		m.shards[i] = &shard[V]{items: make(map[string]V)}
	}
	return m
}

// ShardOf returns the index of the shard that owns key.
func (m *Map[V]) ShardOf(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(len(m.shards)))
}

// ShardCount returns the fixed number of shards.
func (m *Map[V]) ShardCount() int {
	return len(m.shards)
}

func (m *Map[V]) shardFor(key string) *shard[V] {
	return m.shards[m.ShardOf(key)]
}

// Get retrieves a value by key.
func (m *Map[V]) Get(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.items[key]
	return val, ok
}

// Set stores a key-value pair, replacing any previous value.
func (m *Map[V]) Set(key string, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// Count returns the total number of items.
// Shards are locked one at a time, so the result is not a snapshot.
func (m *Map[V]) Count() int {
	count := 0
	for _, s := range m.shards {
		s.mu.Lock()
		count += len(s.items)
		s.mu.Unlock()
	}
	return count
}

// Stats returns the item count of every shard.
func (m *Map[V]) Stats() []ShardStat {
	stats := make([]ShardStat, len(m.shards))
	for i, s := range m.shards {
		s.mu.Lock()
		stats[i] = ShardStat{Index: i, Count: len(s.items)}
		s.mu.Unlock()
	}
	return stats
}

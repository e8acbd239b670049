package memory

import (
	"github.com/yndnr/minikv/pkg/cmap"
)

// DefaultShardCount is the number of shards used when none is configured.
const DefaultShardCount = cmap.DefaultShardCount

// Store is a sharded, lock-guarded mapping from string keys to byte values.
type Store struct {
	data *cmap.Map[[]byte]
}

// Option configures the Store.
type Option func(*options)

type options struct {
	shardCount int
}

// WithShardCount sets the number of shards. Non-positive values select
// DefaultShardCount.
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	o := options{shardCount: DefaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store{
		data: cmap.NewWithShards[[]byte](o.shardCount),
	}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key string) ([]byte, bool) {
	val, ok := s.data.Get(key)
	if !ok {
		return nil, false
	}
	return clone(val), true
}

// Set stores a copy of value under key, replacing any previous value.
func (s *Store) Set(key string, value []byte) {
	s.data.Set(key, clone(value))
}

// ShardOf returns the shard index that owns key.
func (s *Store) ShardOf(key string) int {
	return s.data.ShardOf(key)
}

// ShardCount returns the fixed number of shards.
func (s *Store) ShardCount() int {
	return s.data.ShardCount()
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	return s.data.Count()
}

// ShardSizes returns the number of keys held by each shard, indexed by shard.
func (s *Store) ShardSizes() []int {
	stats := s.data.Stats()
	sizes := make([]int, len(stats))
	for _, st := range stats {
		sizes[st.Index] = st.Count
	}
	return sizes
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

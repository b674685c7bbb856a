package kv

import (
	"sync"

	farm "github.com/dgryski/go-farm"
)

// numShards mirrors fusion/kmer_index.go's 256-way sharding: the top 8 bits
// of a farmhash pick the shard, spreading Get/Put lock contention across
// NumCPU-many goroutines instead of serializing every store access behind
// one mutex.
const numShards = 256

type shard struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// shardedMap is the concurrency-safe backing store for both MemStore and
// FileStore. The wire format (writeSnapshot/loadSnapshot) stays a flat
// map -- sharding is purely an in-memory access-pattern concern.
type shardedMap struct {
	shards [numShards]*shard
}

func newShardedMap() *shardedMap {
	m := &shardedMap{}
	for i := range m.shards {
		m.shards[i] = &shard{data: make(map[string][]byte)}
	}
	return m
}

func (m *shardedMap) shardFor(key string) *shard {
	h := farm.Hash64([]byte(key))
	return m.shards[h>>56]
}

func (m *shardedMap) get(key string) ([]byte, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (m *shardedMap) put(key string, value []byte) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// flatten collects every shard into a single map, for snapshot writeout.
func (m *shardedMap) flatten() map[string][]byte {
	out := make(map[string][]byte)
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.data {
			out[k] = v
		}
		s.mu.RUnlock()
	}
	return out
}

// loadInto distributes a flat snapshot map back across shards.
func (m *shardedMap) loadInto(data map[string][]byte) {
	for k, v := range data {
		m.put(k, v)
	}
}

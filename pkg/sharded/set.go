package sharded

import "sync"

type setShard struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// Set is a concurrent string set sharded across independently locked buckets.
type Set struct {
	shards [numShards]*setShard
}

func NewSet() *Set {
	s := &Set{}
	for i := range s.shards {
		s.shards[i] = &setShard{items: make(map[string]struct{})}
	}
	return s
}

func (s *Set) shard(key string) *setShard {
	return s.shards[shardIndex(key)]
}

// Store adds a key to the set.
func (s *Set) Store(key string) {
	shard := s.shard(key)
	shard.mu.Lock()
	shard.items[key] = struct{}{}
	shard.mu.Unlock()
}

// Has checks for the presence of a key.
func (s *Set) Has(key string) bool {
	shard := s.shard(key)
	shard.mu.RLock()
	_, ok := shard.items[key]
	shard.mu.RUnlock()
	return ok
}

// LoadOrStore ensures a key is present, returning true if it was already
// present and false if it was newly stored. The operation is atomic.
func (s *Set) LoadOrStore(key string) (loaded bool) {
	shard := s.shard(key)
	shard.mu.Lock()
	_, loaded = shard.items[key]
	if !loaded {
		shard.items[key] = struct{}{}
	}
	shard.mu.Unlock()
	return loaded
}

// Count returns the total number of keys in the set.
func (s *Set) Count() int {
	count := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		count += len(shard.items)
		shard.mu.RUnlock()
	}
	return count
}

// Keys returns all keys in the set in no particular order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, s.Count())
	for _, shard := range s.shards {
		shard.mu.RLock()
		for k := range shard.items {
			keys = append(keys, k)
		}
		shard.mu.RUnlock()
	}
	return keys
}

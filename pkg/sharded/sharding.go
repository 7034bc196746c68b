// Package sharded provides a lock-sharded concurrent set keyed by path
// strings. The sorter uses it for hot-path caches (created destination
// directories, claimed destination names) where a single mutex would
// serialize the worker pool.
package sharded

import "hash/fnv"

// numShards must be a power of 2 so the bitwise AND below is a valid modulus.
const numShards = 64

// shardIndex calculates the shard index for a given key using FNV-1a.
func shardIndex(key string) int {
	h := fnv.New32a()
	// Write never returns an error for FNV-1a.
	h.Write([]byte(key))
	return int(h.Sum32() & uint32(numShards-1))
}

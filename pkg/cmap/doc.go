// Package cmap provides a concurrent sharded map.
//
// Keys are spread over a power-of-two number of shards, each guarded by
// its own RWMutex, so unrelated keys rarely contend.
//
// Usage:
//
//	m := cmap.New[*Object, string]()
//	m.Set(obj, "slot-1")
//	name, ok := m.Get(obj)
//
// Range and the helpers built on it lock one shard at a time, so they see
// a consistent view per shard but not across the whole map.
package cmap

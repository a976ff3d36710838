// Package service implements save and load of world state.
//
// This package contains:
//
//   - Serializer: captures a contiguous shard of entities into records
//   - Restorer: applies slot data back onto a world
//   - LoadSlotInfosTask: background listing of slot info headers
//   - Manager: coordinates sharded saves, loads, autosave and pruning
//
// Serialization work is split into disjoint shards that write only to
// private outputs and are merged by the caller. Slot info loads hand their
// results back on the owner goroutine through Manager.Tick.
package service

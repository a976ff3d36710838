// Package world defines the simulation model the save engine captures.
//
// The model is deliberately small: entities own components, components keep a
// non-owning back-reference to their entity, and an optional session object
// holds state that belongs to no entity. Persisted state lives in the State
// field of each object as a pointer to a struct whose persisted fields carry
// `save:"<n>"` tags; untagged fields are transient.
//
// A World is read-only while a save is running. Serialization shards read it
// concurrently and never mutate it.
package world

// Package capture decides what part of the world a save captures.
//
// A Policy is a set of pure predicates over entities and components. The
// serializer consults it for every object; predicates never mutate state and
// always return the same answer for the same snapshot, so one Policy value
// can be shared by concurrent shards.
package capture

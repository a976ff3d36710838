// Package archive implements the versioned binary archive used for every
// payload the save engine writes.
//
// An archive is a version tag followed by a sequence of numbered fields in
// protobuf wire format:
//
//	[version:varint][field]*
//	field = [tag:varint (number<<3 | wire type)][value]
//
// Readers accept any version up to CurrentVersion and reject newer ones with
// domain.ErrIncompatibleVersion. Inside a version, evolution is by field
// number: readers skip numbers they do not know, and fields an older writer
// never produced are simply absent.
//
// Two modes are offered:
//
//   - Primitive mode: Writer/Reader methods for scalars, strings, vectors,
//     quaternions and transforms, used by the record schema.
//   - Persisted-field mode: MarshalFields/UnmarshalFields walk struct fields
//     tagged `save:"<n>"`. Untagged fields are transient and never written.
//
// Registry maps class names to factories so a payload can be decoded into a
// fresh object of the class that produced it.
package archive

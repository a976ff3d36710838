// Package record defines the binary record schema of a save slot and the
// on-disk framing of slot files.
//
// Records are plain data. Optional fields use pointers or nil slices, and
// absence is meaningful: a nil Transform means the capture policy declined
// to store it, not that the object sits at the origin.
//
// Slot file layout:
//
//	[magic:8 "WSAVSLOT"]
//	[InfoLen:4][InfoCRC32:4][Info:InfoLen]   archive-encoded SlotInfo
//	[DataLen:4][Data:DataLen]               archive-encoded SlotData
//	[checksum:32 SHA-256 of all bytes above]
//
// The info block carries its own CRC so listings can read and validate the
// header without touching the body.
package record

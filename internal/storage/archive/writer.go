package archive

import (
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/worldsave/internal/core/world"
)

// CurrentVersion is the archive format version written by this package.
const CurrentVersion uint64 = 1

// Number is a field number within an archive.
type Number = protowire.Number

// Writer appends fields to an archive buffer.
type Writer struct {
	buf []byte
}

// NewWriter starts an archive tagged with CurrentVersion.
func NewWriter() *Writer {
	return NewWriterVersion(CurrentVersion)
}

// NewWriterVersion starts an archive tagged with an explicit version.
func NewWriterVersion(version uint64) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.buf = protowire.AppendVarint(w.buf, version)
	return w
}

// nested returns an untagged writer for embedded messages.
func nested() *Writer {
	return &Writer{}
}

// Bytes returns the encoded archive.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the encoded size in bytes.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bool writes a boolean field.
func (w *Writer) Bool(num Number, v bool) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, protowire.EncodeBool(v))
}

// Int writes a signed integer field (zig-zag encoded).
func (w *Writer) Int(num Number, v int64) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, protowire.EncodeZigZag(v))
}

// Uint writes an unsigned integer field.
func (w *Writer) Uint(num Number, v uint64) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, v)
}

// Float writes a float64 field.
func (w *Writer) Float(num Number, v float64) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.Fixed64Type)
	w.buf = protowire.AppendFixed64(w.buf, math.Float64bits(v))
}

// String writes a string field.
func (w *Writer) String(num Number, s string) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, s)
}

// Raw writes an opaque byte field.
func (w *Writer) Raw(num Number, b []byte) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, b)
}

// Time writes a timestamp as Unix nanoseconds.
func (w *Writer) Time(num Number, t time.Time) {
	w.Int(num, t.UnixNano())
}

// Message writes an embedded message built by fn.
func (w *Writer) Message(num Number, fn func(*Writer)) {
	sub := nested()
	fn(sub)
	w.Raw(num, sub.buf)
}

// Strings writes a string list. An empty list is still written, so a
// present-but-empty list is distinguishable from an absent one.
func (w *Writer) Strings(num Number, ss []string) {
	w.Message(num, func(m *Writer) {
		for _, s := range ss {
			m.String(1, s)
		}
	})
}

// StringMap writes a string map as a list of key/value entries.
func (w *Writer) StringMap(num Number, m map[string]string) {
	w.Message(num, func(mw *Writer) {
		for _, k := range sortedKeys(m) {
			mw.Message(1, func(e *Writer) {
				e.String(1, k)
				e.String(2, m[k])
			})
		}
	})
}

// Vector writes a vector field.
func (w *Writer) Vector(num Number, v world.Vector) {
	w.Message(num, func(m *Writer) {
		m.Float(1, v.X)
		m.Float(2, v.Y)
		m.Float(3, v.Z)
	})
}

// Quat writes a quaternion field.
func (w *Writer) Quat(num Number, q world.Quat) {
	w.Message(num, func(m *Writer) {
		m.Float(1, q.X)
		m.Float(2, q.Y)
		m.Float(3, q.Z)
		m.Float(4, q.W)
	})
}

// Transform writes a transform field.
func (w *Writer) Transform(num Number, t world.Transform) {
	w.Message(num, func(m *Writer) {
		m.Vector(1, t.Location)
		m.Quat(2, t.Rotation)
		m.Vector(3, t.Scale)
	})
}

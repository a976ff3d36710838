package archive

import (
	"maps"
	"math"
	"slices"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/world"
)

// Reader iterates the fields of an archive.
type Reader struct {
	buf     []byte
	version uint64
}

// NewReader opens an archive and checks its version tag.
func NewReader(data []byte) (*Reader, error) {
	version, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, domain.ErrMalformedArchive.WithDetails("version tag: %v", protowire.ParseError(n))
	}
	if version == 0 || version > CurrentVersion {
		return nil, domain.ErrIncompatibleVersion.WithDetails("got %d, support up to %d", version, CurrentVersion)
	}
	return &Reader{buf: data[n:], version: version}, nil
}

// Version returns the version tag the archive was written with.
func (r *Reader) Version() uint64 {
	return r.version
}

// Field is one decoded field. Accessors validate the wire type.
type Field struct {
	Num  Number
	Type protowire.Type

	scalar  uint64
	payload []byte
	version uint64
}

// Each calls fn for every field in order. Group-encoded fields are skipped.
func (r *Reader) Each(fn func(Field) error) error {
	b := r.buf
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed("tag", n)
		}
		b = b[n:]

		f := Field{Num: num, Type: typ, version: r.version}
		switch typ {
		case protowire.VarintType:
			f.scalar, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.scalar, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.scalar = uint64(v)
		case protowire.BytesType:
			f.payload, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return malformed("field value", n)
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return malformed("field value", n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func malformed(what string, n int) error {
	return domain.ErrMalformedArchive.WithDetails("%s: %v", what, protowire.ParseError(n))
}

func (f Field) expect(t protowire.Type) error {
	if f.Type != t {
		return domain.ErrMalformedArchive.WithDetails("field %d: wire type %d, want %d", f.Num, f.Type, t)
	}
	return nil
}

// Bool decodes a boolean field.
func (f Field) Bool() (bool, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return false, err
	}
	return protowire.DecodeBool(f.scalar), nil
}

// Int decodes a signed integer field.
func (f Field) Int() (int64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(f.scalar), nil
}

// Uint decodes an unsigned integer field.
func (f Field) Uint() (uint64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return f.scalar, nil
}

// Float decodes a float64 field.
func (f Field) Float() (float64, error) {
	if err := f.expect(protowire.Fixed64Type); err != nil {
		return 0, err
	}
	return math.Float64frombits(f.scalar), nil
}

// Text decodes a string field.
func (f Field) Text() (string, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return "", err
	}
	return string(f.payload), nil
}

// Raw returns a copy of an opaque byte field.
func (f Field) Raw() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return slices.Clone(f.payload), nil
}

// Time decodes a timestamp field as UTC.
func (f Field) Time() (time.Time, error) {
	ns, err := f.Int()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, ns).UTC(), nil
}

// Message returns a reader over an embedded message.
func (f Field) Message() (*Reader, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return &Reader{buf: f.payload, version: f.version}, nil
}

// Strings decodes a string list. The result is non-nil even when empty.
func (f Field) Strings() ([]string, error) {
	m, err := f.Message()
	if err != nil {
		return nil, err
	}
	out := []string{}
	err = m.Each(func(e Field) error {
		if e.Num != 1 {
			return nil
		}
		s, err := e.Text()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// StringMap decodes a string map.
func (f Field) StringMap() (map[string]string, error) {
	m, err := f.Message()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	err = m.Each(func(e Field) error {
		if e.Num != 1 {
			return nil
		}
		entry, err := e.Message()
		if err != nil {
			return err
		}
		var k, v string
		err = entry.Each(func(kv Field) error {
			var err error
			switch kv.Num {
			case 1:
				k, err = kv.Text()
			case 2:
				v, err = kv.Text()
			}
			return err
		})
		if err != nil {
			return err
		}
		out[k] = v
		return nil
	})
	return out, err
}

// Vector decodes a vector field.
func (f Field) Vector() (world.Vector, error) {
	var v world.Vector
	m, err := f.Message()
	if err != nil {
		return v, err
	}
	err = m.Each(func(c Field) error {
		var err error
		switch c.Num {
		case 1:
			v.X, err = c.Float()
		case 2:
			v.Y, err = c.Float()
		case 3:
			v.Z, err = c.Float()
		}
		return err
	})
	return v, err
}

// Quat decodes a quaternion field.
func (f Field) Quat() (world.Quat, error) {
	var q world.Quat
	m, err := f.Message()
	if err != nil {
		return q, err
	}
	err = m.Each(func(c Field) error {
		var err error
		switch c.Num {
		case 1:
			q.X, err = c.Float()
		case 2:
			q.Y, err = c.Float()
		case 3:
			q.Z, err = c.Float()
		case 4:
			q.W, err = c.Float()
		}
		return err
	})
	return q, err
}

// Transform decodes a transform field.
func (f Field) Transform() (world.Transform, error) {
	t := world.IdentityTransform
	m, err := f.Message()
	if err != nil {
		return t, err
	}
	err = m.Each(func(c Field) error {
		var err error
		switch c.Num {
		case 1:
			t.Location, err = c.Vector()
		case 2:
			t.Rotation, err = c.Quat()
		case 3:
			t.Scale, err = c.Vector()
		}
		return err
	})
	return t, err
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

package archive

import (
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/world"
)

// FieldMarshaler is implemented by objects that write their own persisted
// fields instead of relying on struct tags.
type FieldMarshaler interface {
	MarshalFields(w *Writer) error
}

// FieldUnmarshaler is the decoding counterpart of FieldMarshaler.
type FieldUnmarshaler interface {
	UnmarshalFields(r *Reader) error
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	durationType  = reflect.TypeOf(time.Duration(0))
	vectorType    = reflect.TypeOf(world.Vector{})
	quatType      = reflect.TypeOf(world.Quat{})
	transformType = reflect.TypeOf(world.Transform{})
)

type persistedField struct {
	num   Number
	index []int
	name  string
}

var fieldCache sync.Map // reflect.Type -> []persistedField

// persistedFields returns the tagged fields of a struct type.
func persistedFields(t reflect.Type) ([]persistedField, error) {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]persistedField), nil
	}

	var fields []persistedField
	seen := make(map[Number]string)
	for _, sf := range reflect.VisibleFields(t) {
		tag, ok := sf.Tag.Lookup("save")
		if !ok || tag == "-" || !sf.IsExported() {
			continue
		}
		numStr, _, _ := strings.Cut(tag, ",")
		n, err := strconv.ParseUint(numStr, 10, 29)
		if err != nil || n == 0 {
			return nil, domain.ErrUnsupportedField.WithDetails("%s.%s: bad save tag %q", t.Name(), sf.Name, tag)
		}
		num := Number(n)
		if prev, dup := seen[num]; dup {
			return nil, domain.ErrUnsupportedField.WithDetails("%s: fields %s and %s share number %d", t.Name(), prev, sf.Name, num)
		}
		seen[num] = sf.Name
		fields = append(fields, persistedField{num: num, index: sf.Index, name: sf.Name})
	}

	fieldCache.Store(t, fields)
	return fields, nil
}

// MarshalFields encodes the persisted fields of obj into a versioned
// archive. A nil obj yields an empty archive.
func MarshalFields(obj any) ([]byte, error) {
	w := NewWriter()
	if obj == nil {
		return w.Bytes(), nil
	}
	if m, ok := obj.(FieldMarshaler); ok {
		if err := m.MarshalFields(w); err != nil {
			return nil, err
		}
		return w.Bytes(), nil
	}

	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return w.Bytes(), nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, domain.ErrUnsupportedField.WithDetails("cannot persist %s", v.Type())
	}
	if err := writeStruct(w, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalFields decodes an archive produced by MarshalFields into obj,
// which must be a non-nil pointer. Fields absent from the archive keep
// their current values; unknown field numbers are ignored.
func UnmarshalFields(data []byte, obj any) error {
	r, err := NewReader(data)
	if err != nil {
		return err
	}
	if u, ok := obj.(FieldUnmarshaler); ok {
		return u.UnmarshalFields(r)
	}

	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return domain.ErrUnsupportedField.WithDetails("decode target must be a non-nil pointer, got %T", obj)
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return domain.ErrUnsupportedField.WithDetails("cannot decode into %s", v.Type())
	}
	return readStruct(r, v)
}

func writeStruct(w *Writer, v reflect.Value) error {
	fields, err := persistedFields(v.Type())
	if err != nil {
		return err
	}
	for _, pf := range fields {
		fv, err := v.FieldByIndexErr(pf.index)
		if err != nil {
			// Nil embedded pointer: nothing to persist.
			continue
		}
		if err := writeValue(w, pf.num, fv); err != nil {
			return err
		}
	}
	return nil
}

func writeValue(w *Writer, num Number, v reflect.Value) error {
	switch v.Type() {
	case timeType:
		w.Time(num, v.Interface().(time.Time))
		return nil
	case durationType:
		w.Int(num, v.Int())
		return nil
	case vectorType:
		w.Vector(num, v.Interface().(world.Vector))
		return nil
	case quatType:
		w.Quat(num, v.Interface().(world.Quat))
		return nil
	case transformType:
		w.Transform(num, v.Interface().(world.Transform))
		return nil
	}

	switch v.Kind() {
	case reflect.Bool:
		w.Bool(num, v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.Int(num, v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		w.Uint(num, v.Uint())
	case reflect.Float32, reflect.Float64:
		w.Float(num, v.Float())
	case reflect.String:
		w.String(num, v.String())
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return writeValue(w, num, v.Elem())
	case reflect.Struct:
		sub := nested()
		if err := writeStruct(sub, v); err != nil {
			return err
		}
		w.Raw(num, sub.buf)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			w.Raw(num, v.Bytes())
			return nil
		}
		sub := nested()
		for i := 0; i < v.Len(); i++ {
			if err := writeValue(sub, 1, v.Index(i)); err != nil {
				return err
			}
		}
		w.Raw(num, sub.buf)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return domain.ErrUnsupportedField.WithDetails("map key %s", v.Type().Key())
		}
		sub := nested()
		keys := v.MapKeys()
		sortValues(keys)
		for _, k := range keys {
			entry := nested()
			entry.String(1, k.String())
			if err := writeValue(entry, 2, v.MapIndex(k)); err != nil {
				return err
			}
			sub.Raw(1, entry.buf)
		}
		w.Raw(num, sub.buf)
	default:
		return domain.ErrUnsupportedField.WithDetails("kind %s", v.Kind())
	}
	return nil
}

func readStruct(r *Reader, v reflect.Value) error {
	fields, err := persistedFields(v.Type())
	if err != nil {
		return err
	}
	byNum := make(map[Number]persistedField, len(fields))
	for _, pf := range fields {
		byNum[pf.num] = pf
	}

	return r.Each(func(f Field) error {
		pf, ok := byNum[f.Num]
		if !ok {
			return nil
		}
		fv, err := v.FieldByIndexErr(pf.index)
		if err != nil {
			return nil
		}
		if err := readValue(f, fv); err != nil {
			return domain.ErrMalformedArchive.WithDetails("field %s", pf.name).Wrap(err)
		}
		return nil
	})
}

func readValue(f Field, v reflect.Value) error {
	switch v.Type() {
	case timeType:
		t, err := f.Time()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(t))
		return nil
	case durationType:
		n, err := f.Int()
		if err != nil {
			return err
		}
		v.SetInt(n)
		return nil
	case vectorType:
		vec, err := f.Vector()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(vec))
		return nil
	case quatType:
		q, err := f.Quat()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(q))
		return nil
	case transformType:
		t, err := f.Transform()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(t))
		return nil
	}

	switch v.Kind() {
	case reflect.Bool:
		b, err := f.Bool()
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := f.Int()
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := f.Uint()
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		x, err := f.Float()
		if err != nil {
			return err
		}
		v.SetFloat(x)
	case reflect.String:
		s, err := f.Text()
		if err != nil {
			return err
		}
		v.SetString(s)
	case reflect.Pointer:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return readValue(f, v.Elem())
	case reflect.Struct:
		m, err := f.Message()
		if err != nil {
			return err
		}
		return readStruct(m, v)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b, err := f.Raw()
			if err != nil {
				return err
			}
			if len(b) == 0 {
				b = nil
			}
			v.SetBytes(b)
			return nil
		}
		m, err := f.Message()
		if err != nil {
			return err
		}
		out := reflect.Zero(v.Type())
		err = m.Each(func(e Field) error {
			if e.Num != 1 {
				return nil
			}
			elem := reflect.New(v.Type().Elem()).Elem()
			if err := readValue(e, elem); err != nil {
				return err
			}
			out = reflect.Append(out, elem)
			return nil
		})
		if err != nil {
			return err
		}
		v.Set(out)
	case reflect.Map:
		m, err := f.Message()
		if err != nil {
			return err
		}
		var out reflect.Value
		err = m.Each(func(e Field) error {
			if e.Num != 1 {
				return nil
			}
			entry, err := e.Message()
			if err != nil {
				return err
			}
			key := reflect.New(v.Type().Key()).Elem()
			val := reflect.New(v.Type().Elem()).Elem()
			err = entry.Each(func(kv Field) error {
				switch kv.Num {
				case 1:
					s, err := kv.Text()
					if err != nil {
						return err
					}
					key.SetString(s)
				case 2:
					return readValue(kv, val)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if !out.IsValid() {
				out = reflect.MakeMap(v.Type())
			}
			out.SetMapIndex(key, val)
			return nil
		})
		if err != nil {
			return err
		}
		if !out.IsValid() {
			out = reflect.Zero(v.Type())
		}
		v.Set(out)
	default:
		return domain.ErrUnsupportedField.WithDetails("kind %s", v.Kind())
	}
	return nil
}

func sortValues(keys []reflect.Value) {
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})
}

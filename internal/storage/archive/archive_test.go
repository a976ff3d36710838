package archive

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/world"
)

type inventory struct {
	Slots []string          `save:"1"`
	Gold  uint32            `save:"2"`
	Notes map[string]string `save:"3"`
}

type crateState struct {
	Health    int32           `save:"1"`
	Label     string          `save:"2"`
	Opened    bool            `save:"3"`
	Weight    float64         `save:"4"`
	Spin      world.Vector    `save:"5"`
	Facing    world.Quat      `save:"6"`
	Anchor    world.Transform `save:"7"`
	Stamp     time.Time       `save:"8"`
	Cooldown  time.Duration   `save:"9"`
	Blob      []byte          `save:"10"`
	Inventory inventory       `save:"11"`
	Owner     *inventory      `save:"12"`
	Scores    []int64         `save:"13"`

	// Transient: never written.
	frameCount int
	Cache      string
}

func sampleCrate() *crateState {
	return &crateState{
		Health:   42,
		Label:    "supply",
		Opened:   true,
		Weight:   12.5,
		Spin:     world.Vector{X: 1, Y: -2, Z: 3},
		Facing:   world.Quat{X: 0, Y: 0.7071, Z: 0, W: 0.7071},
		Anchor:   world.Transform{Location: world.Vector{X: 10}, Rotation: world.IdentityQuat, Scale: world.Vector{X: 2, Y: 2, Z: 2}},
		Stamp:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Cooldown: 3 * time.Second,
		Blob:     []byte{0xde, 0xad},
		Inventory: inventory{
			Slots: []string{"sword", "shield"},
			Gold:  99,
			Notes: map[string]string{"a": "1", "b": "2"},
		},
		Owner:      &inventory{Gold: 7},
		Scores:     []int64{-1, 0, 5},
		frameCount: 77,
		Cache:      "hot",
	}
}

func TestMarshalFields_RoundTrip(t *testing.T) {
	in := sampleCrate()
	data, err := MarshalFields(in)
	if err != nil {
		t.Fatalf("MarshalFields: %v", err)
	}

	var out crateState
	if err := UnmarshalFields(data, &out); err != nil {
		t.Fatalf("UnmarshalFields: %v", err)
	}

	if out.frameCount != 0 || out.Cache != "" {
		t.Fatalf("transient fields leaked: frameCount=%d Cache=%q", out.frameCount, out.Cache)
	}
	if !out.Stamp.Equal(in.Stamp) {
		t.Fatalf("Stamp = %v, want %v", out.Stamp, in.Stamp)
	}

	in.frameCount, in.Cache = 0, ""
	out.Stamp = in.Stamp
	if !reflect.DeepEqual(&out, in) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, *in)
	}
}

func TestMarshalFields_NilAndEmpty(t *testing.T) {
	data, err := MarshalFields(nil)
	if err != nil {
		t.Fatalf("MarshalFields(nil): %v", err)
	}
	r, err := NewReader(data)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Version() != CurrentVersion {
		t.Fatalf("Version() = %d, want %d", r.Version(), CurrentVersion)
	}

	var nilPtr *crateState
	if _, err := MarshalFields(nilPtr); err != nil {
		t.Fatalf("MarshalFields(nil pointer): %v", err)
	}

	if _, err := MarshalFields(42); !errors.Is(err, domain.ErrUnsupportedField) {
		t.Fatalf("MarshalFields(int) err = %v, want ErrUnsupportedField", err)
	}
}

func TestUnmarshalFields_AbsentFieldsKeepValues(t *testing.T) {
	type v1 struct {
		Health int32 `save:"1"`
	}
	type v2 struct {
		Health int32  `save:"1"`
		Armor  int32  `save:"2"`
		Title  string `save:"3"`
	}

	data, err := MarshalFields(&v1{Health: 5})
	if err != nil {
		t.Fatalf("MarshalFields: %v", err)
	}

	out := v2{Armor: 10, Title: "default"}
	if err := UnmarshalFields(data, &out); err != nil {
		t.Fatalf("UnmarshalFields: %v", err)
	}
	if out.Health != 5 || out.Armor != 10 || out.Title != "default" {
		t.Fatalf("got %+v, want Health=5 Armor=10 Title=default", out)
	}
}

func TestUnmarshalFields_UnknownFieldsSkipped(t *testing.T) {
	type newer struct {
		Health int32  `save:"1"`
		Extra  string `save:"9"`
	}
	type older struct {
		Health int32 `save:"1"`
	}

	data, err := MarshalFields(&newer{Health: 3, Extra: "future"})
	if err != nil {
		t.Fatalf("MarshalFields: %v", err)
	}
	var out older
	if err := UnmarshalFields(data, &out); err != nil {
		t.Fatalf("UnmarshalFields: %v", err)
	}
	if out.Health != 3 {
		t.Fatalf("Health = %d, want 3", out.Health)
	}
}

func TestUnmarshalFields_ZeroOverwritesExisting(t *testing.T) {
	data, err := MarshalFields(&crateState{Health: 0, Inventory: inventory{}})
	if err != nil {
		t.Fatalf("MarshalFields: %v", err)
	}
	out := sampleCrate()
	if err := UnmarshalFields(data, out); err != nil {
		t.Fatalf("UnmarshalFields: %v", err)
	}
	if out.Health != 0 {
		t.Fatalf("Health = %d, want 0", out.Health)
	}
	if out.Inventory.Slots != nil || out.Inventory.Notes != nil {
		t.Fatalf("collections not replaced: %+v", out.Inventory)
	}
}

func TestNewReader_Versions(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"current", protowire.AppendVarint(nil, CurrentVersion), nil},
		{"newer", protowire.AppendVarint(nil, CurrentVersion+1), domain.ErrIncompatibleVersion},
		{"zero", protowire.AppendVarint(nil, 0), domain.ErrIncompatibleVersion},
		{"empty", nil, domain.ErrMalformedArchive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("NewReader: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewReader err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnmarshalFields_NewerVersionRejected(t *testing.T) {
	w := NewWriterVersion(CurrentVersion + 1)
	w.Int(1, 5)
	var out crateState
	err := UnmarshalFields(w.Bytes(), &out)
	if !errors.Is(err, domain.ErrIncompatibleVersion) {
		t.Fatalf("err = %v, want ErrIncompatibleVersion", err)
	}
}

func TestUnmarshalFields_Truncated(t *testing.T) {
	data, err := MarshalFields(sampleCrate())
	if err != nil {
		t.Fatalf("MarshalFields: %v", err)
	}
	var out crateState
	err = UnmarshalFields(data[:len(data)-3], &out)
	if !errors.Is(err, domain.ErrMalformedArchive) {
		t.Fatalf("err = %v, want ErrMalformedArchive", err)
	}
}

func TestUnmarshalFields_WireTypeMismatch(t *testing.T) {
	w := NewWriter()
	w.String(1, "not a number")
	var out crateState
	err := UnmarshalFields(w.Bytes(), &out)
	if !errors.Is(err, domain.ErrMalformedArchive) {
		t.Fatalf("err = %v, want ErrMalformedArchive", err)
	}
}

func TestPersistedFields_BadTags(t *testing.T) {
	type dup struct {
		A int `save:"1"`
		B int `save:"1"`
	}
	type bad struct {
		A int `save:"x"`
	}
	if _, err := MarshalFields(&dup{}); !errors.Is(err, domain.ErrUnsupportedField) {
		t.Errorf("dup tags err = %v, want ErrUnsupportedField", err)
	}
	if _, err := MarshalFields(&bad{}); !errors.Is(err, domain.ErrUnsupportedField) {
		t.Errorf("bad tag err = %v, want ErrUnsupportedField", err)
	}
}

type customState struct {
	value string
}

func (c *customState) MarshalFields(w *Writer) error {
	w.String(1, c.value)
	return nil
}

func (c *customState) UnmarshalFields(r *Reader) error {
	return r.Each(func(f Field) error {
		if f.Num != 1 {
			return nil
		}
		s, err := f.Text()
		c.value = s
		return err
	})
}

func TestMarshalFields_CustomMarshaler(t *testing.T) {
	data, err := MarshalFields(&customState{value: "hand-written"})
	if err != nil {
		t.Fatalf("MarshalFields: %v", err)
	}
	var out customState
	if err := UnmarshalFields(data, &out); err != nil {
		t.Fatalf("UnmarshalFields: %v", err)
	}
	if out.value != "hand-written" {
		t.Fatalf("value = %q, want hand-written", out.value)
	}
}

func TestWriterReader_Primitives(t *testing.T) {
	w := NewWriter()
	w.Bool(1, true)
	w.Int(2, -7)
	w.Uint(3, 9)
	w.Float(4, 1.25)
	w.String(5, "hello")
	w.Strings(6, []string{})
	w.StringMap(7, map[string]string{"k": "v"})
	w.Transform(8, world.IdentityTransform)

	r, err := NewReader(w.Bytes())
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	seen := map[Number]bool{}
	err = r.Each(func(f Field) error {
		seen[f.Num] = true
		switch f.Num {
		case 1:
			v, err := f.Bool()
			if err != nil || !v {
				t.Errorf("Bool = %v, %v", v, err)
			}
		case 2:
			v, err := f.Int()
			if err != nil || v != -7 {
				t.Errorf("Int = %v, %v", v, err)
			}
		case 3:
			v, err := f.Uint()
			if err != nil || v != 9 {
				t.Errorf("Uint = %v, %v", v, err)
			}
		case 4:
			v, err := f.Float()
			if err != nil || v != 1.25 {
				t.Errorf("Float = %v, %v", v, err)
			}
		case 5:
			v, err := f.Text()
			if err != nil || v != "hello" {
				t.Errorf("Text = %v, %v", v, err)
			}
		case 6:
			v, err := f.Strings()
			if err != nil || v == nil || len(v) != 0 {
				t.Errorf("Strings = %#v, %v; want empty non-nil", v, err)
			}
		case 7:
			v, err := f.StringMap()
			if err != nil || v["k"] != "v" {
				t.Errorf("StringMap = %v, %v", v, err)
			}
		case 8:
			v, err := f.Transform()
			if err != nil || v != world.IdentityTransform {
				t.Errorf("Transform = %v, %v", v, err)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if len(seen) != 8 {
		t.Fatalf("saw %d fields, want 8", len(seen))
	}
}

func TestRegistry_Decode(t *testing.T) {
	reg := NewRegistry()
	RegisterType[crateState](reg, "Crate")

	if !reg.Has("Crate") || reg.Has("Barrel") {
		t.Fatalf("Has() mismatch")
	}
	if got := reg.Classes(); len(got) != 1 || got[0] != "Crate" {
		t.Fatalf("Classes() = %v", got)
	}

	data, err := MarshalFields(sampleCrate())
	if err != nil {
		t.Fatalf("MarshalFields: %v", err)
	}
	obj, err := reg.Decode("Crate", data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	crate, ok := obj.(*crateState)
	if !ok {
		t.Fatalf("Decode returned %T, want *crateState", obj)
	}
	if crate.Health != 42 || crate.Label != "supply" {
		t.Fatalf("decoded %+v", crate)
	}

	if _, err := reg.Decode("Barrel", data); !errors.Is(err, domain.ErrUnknownClass) {
		t.Fatalf("Decode(unknown) err = %v, want ErrUnknownClass", err)
	}
}

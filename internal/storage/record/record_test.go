package record

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/world"
	"github.com/yndnr/worldsave/internal/storage/archive"
)

func sampleFile() *SlotFile {
	tr := world.Transform{Location: world.Vector{X: 1, Y: 2, Z: 3}, Rotation: world.IdentityQuat, Scale: world.Vector{X: 1, Y: 1, Z: 1}}
	lin := world.Vector{X: 5}
	ang := world.Vector{Z: 0.5}
	payload, _ := archive.MarshalFields(nil)

	return &SlotFile{
		Info: &SlotInfo{
			ID:         "01J0000000000000000000000",
			Name:       "slot-1",
			Subname:    "chapter 2",
			SaveDate:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			PlayedTime: 90 * time.Minute,
			Level:      "harbor",
			Custom:     map[string]string{"difficulty": "hard"},
		},
		Data: SlotData{
			Session: &SessionRecord{Class: "GameSession", Payload: payload},
			Entities: []EntityRecord{
				{
					Class:           "Crate",
					Name:            "crate-1",
					Hidden:          true,
					Procedural:      false,
					Tags:            []string{"!SaveTags", "loot"},
					Transform:       &tr,
					LinearVelocity:  &lin,
					AngularVelocity: &ang,
					Components: []ComponentRecord{
						{Name: "body", Class: "Mesh", Transform: &tr},
						{Name: "inv", Class: "Inventory", Tags: []string{}, Payload: payload},
					},
					Payload: payload,
				},
				{
					Class:      "Marker",
					Name:       "marker-1",
					Procedural: true,
					Tags:       []string{},
					Payload:    payload,
				},
			},
		},
	}
}

func TestData_RoundTrip(t *testing.T) {
	in := sampleFile()
	out, err := DecodeData(EncodeData(&in.Data))
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if !reflect.DeepEqual(out, &in.Data) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in.Data)
	}
}

func TestData_AbsenceIsPreserved(t *testing.T) {
	in := SlotData{Entities: []EntityRecord{{
		Class:      "Marker",
		Name:       "m",
		Tags:       []string{},
		Components: []ComponentRecord{{Name: "c", Class: "Light"}},
		Payload:    []byte{1},
	}}}
	out, err := DecodeData(EncodeData(&in))
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if out.Session != nil {
		t.Errorf("Session = %+v, want nil", out.Session)
	}
	rec := out.Entities[0]
	if rec.Transform != nil || rec.LinearVelocity != nil || rec.AngularVelocity != nil {
		t.Errorf("optional entity fields present: %+v", rec)
	}
	c, ok := rec.Component("c")
	if !ok {
		t.Fatalf("component c missing")
	}
	if c.Transform != nil || c.Tags != nil || c.Payload != nil {
		t.Errorf("optional component fields present: %+v", c)
	}
}

func TestData_NilPayloadStaysNil(t *testing.T) {
	in := SlotData{
		Session:  &SessionRecord{Class: "GameSession"},
		Entities: []EntityRecord{{Class: "Broken", Name: "bad", Tags: []string{}}},
	}
	out, err := DecodeData(EncodeData(&in))
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if out.Session == nil || out.Session.Payload != nil {
		t.Errorf("Session = %+v, want present with nil payload", out.Session)
	}
	if got := out.Entities[0].Payload; got != nil {
		t.Errorf("entity Payload = %v, want nil", got)
	}

	// An empty payload is still distinct from a missing one.
	in.Entities[0].Payload = []byte{}
	out, err = DecodeData(EncodeData(&in))
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if got := out.Entities[0].Payload; got == nil || len(got) != 0 {
		t.Errorf("entity Payload = %v, want empty non-nil", got)
	}
}

func TestInfo_ZeroSaveDate(t *testing.T) {
	out, err := DecodeInfo(EncodeInfo(&SlotInfo{ID: "x", Name: "fresh"}))
	if err != nil {
		t.Fatalf("DecodeInfo: %v", err)
	}
	if !out.SaveDate.IsZero() {
		t.Errorf("SaveDate = %v, want zero", out.SaveDate)
	}
}

func TestInfo_RoundTrip(t *testing.T) {
	in := sampleFile().Info
	out, err := DecodeInfo(EncodeInfo(in))
	if err != nil {
		t.Fatalf("DecodeInfo: %v", err)
	}
	if out.ID != in.ID || out.Name != in.Name || out.Subname != in.Subname ||
		!out.SaveDate.Equal(in.SaveDate) || out.PlayedTime != in.PlayedTime ||
		out.Level != in.Level || !reflect.DeepEqual(out.Custom, in.Custom) {
		t.Fatalf("DecodeInfo = %+v, want %+v", out, in)
	}
	if !out.IsValid() || out.IsAsync() {
		t.Fatalf("decoded info lifetime: valid=%v async=%v", out.IsValid(), out.IsAsync())
	}
}

func TestSlotFile_MarshalUnmarshal(t *testing.T) {
	in := sampleFile()
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Info.Name != in.Info.Name {
		t.Fatalf("Info.Name = %q, want %q", out.Info.Name, in.Info.Name)
	}
	if !reflect.DeepEqual(out.Data, in.Data) {
		t.Fatalf("Data mismatch")
	}

	info, err := ReadInfo(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Level != "harbor" {
		t.Fatalf("ReadInfo Level = %q, want harbor", info.Level)
	}
}

func TestReadInfo_IgnoresBody(t *testing.T) {
	data, err := Marshal(sampleFile())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// Damage the tail: full reads must fail, header reads must not.
	data[len(data)-1] ^= 0xff

	if _, err := Unmarshal(data); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Unmarshal err = %v, want ErrChecksumMismatch", err)
	}
	if _, err := ReadInfo(bytes.NewReader(data)); err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
}

func TestReadHeader_Corruption(t *testing.T) {
	good, err := Marshal(sampleFile())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrInvalidMagic},
		{"info crc", func(b []byte) []byte { b[len(magicBytes)+9] ^= 0xff; return b }, ErrChecksumMismatch},
		{"short", func(b []byte) []byte { return b[:len(magicBytes)+4] }, ErrTruncated},
		{"empty", func([]byte) []byte { return nil }, ErrTruncated},
		{"zero info length", func(b []byte) []byte {
			copy(b[len(magicBytes):], []byte{0, 0, 0, 0})
			return b
		}, ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(bytes.Clone(good))
			if _, err := ReadHeader(bytes.NewReader(data)); !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadHeader err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeInfo_NewerVersion(t *testing.T) {
	w := archive.NewWriterVersion(archive.CurrentVersion + 1)
	w.String(infoName, "future")
	if _, err := DecodeInfo(w.Bytes()); !errors.Is(err, domain.ErrIncompatibleVersion) {
		t.Fatalf("DecodeInfo err = %v, want ErrIncompatibleVersion", err)
	}
}

func TestWrite_RequiresInfo(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Write(&buf, &SlotFile{}); err == nil {
		t.Fatalf("Write without info succeeded")
	}
}

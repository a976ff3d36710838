package service

import (
	"errors"
	"slices"
	"testing"

	"github.com/yndnr/worldsave/internal/core/capture"
	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/world"
	"github.com/yndnr/worldsave/internal/storage/record"
)

func capture1(t *testing.T, w *world.World, policy capture.Policy) record.SlotData {
	t.Helper()
	var out record.SlotData
	if err := SerializeEntities(w.Entities, 0, len(w.Entities), policy, w.Session, &out); err != nil {
		t.Fatalf("SerializeEntities() error = %v", err)
	}
	return out
}

func TestRestoreEntities_PlacedAndProcedural(t *testing.T) {
	saved := &world.World{
		Level:   "dock",
		Session: &world.Session{Class: "Session", State: &sessionState{Gold: 30, Quest: "harbor"}},
	}
	placed := crate("placed", 10)
	placed.Hidden = true
	placed.Tags = []string{"opened"}
	saved.Entities = append(saved.Entities, placed)
	saved.Spawn(crate("dropped", 20))

	data := capture1(t, saved, capture.SaveAll{})

	// A fresh level: the placed crate exists in its initial state, the
	// spawned one does not.
	fresh := &world.World{Level: "dock"}
	initial := crate("placed", 1)
	fresh.Entities = append(fresh.Entities, initial, crate("untouched", 5))

	if err := RestoreEntities(fresh, &data, newRegistry()); err != nil {
		t.Fatalf("RestoreEntities() error = %v", err)
	}

	if got := initial.State.(*crateState); *got != (crateState{Health: 10, Label: "placed"}) {
		t.Errorf("placed state = %+v", got)
	}
	if !initial.Hidden || !slices.Equal(initial.Tags, []string{"opened"}) {
		t.Errorf("placed hidden=%v tags=%v", initial.Hidden, initial.Tags)
	}
	if initial.Transform.Location != (world.Vector{X: 10, Y: 2, Z: 3}) {
		t.Errorf("placed location = %+v", initial.Transform.Location)
	}

	untouched := fresh.Find("untouched")
	if got := untouched.State.(*crateState); got.Health != 5 {
		t.Errorf("untouched state = %+v, want health 5", got)
	}

	dropped := fresh.Find("dropped")
	if dropped == nil {
		t.Fatal("procedural entity not rebuilt")
	}
	if !dropped.Spawned {
		t.Error("rebuilt entity not marked spawned")
	}
	if got, ok := dropped.State.(*crateState); !ok || got.Health != 20 {
		t.Errorf("rebuilt state = %#v", dropped.State)
	}
	lamp, ok := dropped.Component("lamp")
	if !ok {
		t.Fatal("rebuilt entity has no lamp component")
	}
	if got, ok := lamp.State.(*lampState); !ok || !got.On {
		t.Errorf("rebuilt lamp state = %#v", lamp.State)
	}
	if root := dropped.Root(); root == nil || root.Name != "root" {
		t.Errorf("rebuilt root = %v, want root", root)
	}

	if fresh.Session == nil {
		t.Fatal("session not restored")
	}
	if got := fresh.Session.State.(*sessionState); *got != (sessionState{Gold: 30, Quest: "harbor"}) {
		t.Errorf("session state = %+v", got)
	}
}

func TestRestoreEntities_Velocity(t *testing.T) {
	ball := world.NewEntity("ball", "Ball")
	body := world.NewComponent("body", "Sphere", world.KindPrimitive)
	body.Mobility = world.Movable
	body.Body.LinearVelocity = world.Vector{X: 3}
	body.Body.AngularVelocity = world.Vector{Y: 2}
	ball.AddComponent(body)
	data := capture1(t, &world.World{Entities: []*world.Entity{ball, crate("box", 1)}}, nil)

	target := world.NewEntity("ball", "Ball")
	targetBody := world.NewComponent("body", "Sphere", world.KindPrimitive)
	targetBody.Mobility = world.Movable
	target.AddComponent(targetBody)
	box := crate("box", 1)
	box.Root().Velocity = world.Vector{}

	w := &world.World{Entities: []*world.Entity{target, box}}
	if err := RestoreEntities(w, &data, nil); err != nil {
		t.Fatalf("RestoreEntities() error = %v", err)
	}
	if targetBody.Body.LinearVelocity != (world.Vector{X: 3}) || targetBody.Body.AngularVelocity != (world.Vector{Y: 2}) {
		t.Errorf("body velocity = %+v", targetBody.Body)
	}
	if box.Root().Velocity != (world.Vector{X: 1}) {
		t.Errorf("scene velocity = %+v, want {1 0 0}", box.Root().Velocity)
	}
}

func TestRestoreEntities_MergesSaveTags(t *testing.T) {
	policy := capture.DefaultFilter()
	policy.StoreTags = false
	policy.KeepTags = []string{"looted"}

	saved := crate("box", 1)
	saved.Tags = []string{"looted", "transient"}
	data := capture1(t, &world.World{Entities: []*world.Entity{saved}}, policy)

	target := crate("box", 1)
	target.Tags = []string{"level"}
	if err := NewRestorer(nil, policy, nil).Restore(&world.World{Entities: []*world.Entity{target}}, &data); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !slices.Equal(target.Tags, []string{"level", "looted"}) {
		t.Errorf("tags = %v, want [level looted]", target.Tags)
	}
}

func TestRestoreEntities_CollectsErrors(t *testing.T) {
	data := record.SlotData{Entities: []record.EntityRecord{
		{Name: "a", Class: "Crate", Payload: []byte{0xff, 0xff}},
		{Name: "b", Class: "Crate", Hidden: true},
	}}
	a, b := crate("a", 1), crate("b", 2)
	err := RestoreEntities(&world.World{Entities: []*world.Entity{a, b}}, &data, newRegistry())
	if err == nil {
		t.Fatal("RestoreEntities() error = nil, want decode failure")
	}
	if !errors.Is(err, domain.ErrMalformedArchive) && !errors.Is(err, domain.ErrIncompatibleVersion) {
		t.Errorf("error = %v, want archive error", err)
	}
	if !b.Hidden {
		t.Error("record after failure not applied")
	}
}

func TestRestoreEntities_SkipsMissingPlaced(t *testing.T) {
	data := record.SlotData{Entities: []record.EntityRecord{{Name: "gone", Class: "Crate"}}}
	w := &world.World{}
	if err := RestoreEntities(w, &data, newRegistry()); err != nil {
		t.Fatalf("RestoreEntities() error = %v", err)
	}
	if len(w.Entities) != 0 {
		t.Errorf("entities = %d, want 0", len(w.Entities))
	}
}

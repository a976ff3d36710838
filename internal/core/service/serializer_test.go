package service

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/worldsave/internal/core/capture"
	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/world"
	"github.com/yndnr/worldsave/internal/storage/archive"
	"github.com/yndnr/worldsave/internal/storage/record"
	"github.com/yndnr/worldsave/internal/task"
	"github.com/yndnr/worldsave/internal/telemetry/metric"
)

type crateState struct {
	Health int32  `save:"1"`
	Label  string `save:"2"`
}

type lampState struct {
	On bool `save:"1"`
}

type sessionState struct {
	Gold  uint32 `save:"1"`
	Quest string `save:"2"`
}

type brokenState struct {
	Signal chan int `save:"1"`
}

func newRegistry() *archive.Registry {
	reg := archive.NewRegistry()
	archive.RegisterType[crateState](reg, "Crate")
	archive.RegisterType[lampState](reg, "Lamp")
	archive.RegisterType[sessionState](reg, "Session")
	return reg
}

// crate builds an entity with a movable scene root and a lamp component.
func crate(name string, health int32) *world.Entity {
	e := world.NewEntity(name, "Crate")
	e.State = &crateState{Health: health, Label: name}
	e.Transform.Location = world.Vector{X: float64(health), Y: 2, Z: 3}

	root := world.NewComponent("root", "Scene", world.KindScene)
	root.Mobility = world.Movable
	root.Velocity = world.Vector{X: 1}
	e.AddComponent(root)

	lamp := world.NewComponent("lamp", "Lamp", world.KindBasic)
	lamp.State = &lampState{On: true}
	e.AddComponent(lamp)
	return e
}

func TestSerializeEntities_TagsScenario(t *testing.T) {
	a := crate("A", 1)
	a.Tags = []string{"keep"}
	b := world.NewEntity("B", "Filtered")
	c := crate("C", 3)
	c.Tags = []string{"drop"}

	policy := &capture.Filter{
		Entities:        capture.ClassFilter{Ignored: []string{"Filtered"}},
		StoreTransforms: true,
		KeepTags:        []string{"keep"},
	}

	var out record.SlotData
	if err := SerializeEntities([]*world.Entity{a, b, c}, 0, 3, policy, nil, &out); err != nil {
		t.Fatalf("SerializeEntities() error = %v", err)
	}

	if len(out.Entities) != 2 {
		t.Fatalf("records = %d, want 2", len(out.Entities))
	}
	if out.Entities[0].Name != "A" || out.Entities[1].Name != "C" {
		t.Fatalf("record names = %s, %s; want A, C", out.Entities[0].Name, out.Entities[1].Name)
	}
	if !slices.Equal(out.Entities[0].Tags, []string{"keep"}) {
		t.Errorf("A tags = %v, want [keep]", out.Entities[0].Tags)
	}
	if tags := out.Entities[1].Tags; tags == nil || len(tags) != 0 {
		t.Errorf("C tags = %#v, want empty", tags)
	}
	if out.Session != nil {
		t.Errorf("Session = %+v, want nil", out.Session)
	}
}

func TestSerializeEntities_PayloadRoundTrip(t *testing.T) {
	e := crate("box", 42)
	var out record.SlotData
	if err := SerializeEntities([]*world.Entity{e}, 0, 1, capture.SaveAll{}, nil, &out); err != nil {
		t.Fatalf("SerializeEntities() error = %v", err)
	}
	if len(out.Entities) != 1 {
		t.Fatalf("records = %d, want 1", len(out.Entities))
	}
	rec := out.Entities[0]

	reg := newRegistry()
	obj, err := reg.Decode(rec.Class, rec.Payload)
	if err != nil {
		t.Fatalf("Decode(entity) error = %v", err)
	}
	if got := obj.(*crateState); *got != (crateState{Health: 42, Label: "box"}) {
		t.Errorf("entity state = %+v", got)
	}

	lamp, ok := rec.Component("lamp")
	if !ok {
		t.Fatal("lamp component not captured")
	}
	obj, err = reg.Decode(lamp.Class, lamp.Payload)
	if err != nil {
		t.Fatalf("Decode(lamp) error = %v", err)
	}
	if !obj.(*lampState).On {
		t.Error("lamp state On = false, want true")
	}
	if lamp.Transform != nil {
		t.Errorf("basic component transform = %+v, want nil", lamp.Transform)
	}
}

func TestSerializeEntities_ComponentsSortedByName(t *testing.T) {
	e := crate("box", 1)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		e.AddComponent(world.NewComponent(name, "Lamp", world.KindBasic))
	}
	var out record.SlotData
	if err := SerializeEntities([]*world.Entity{e}, 0, 1, nil, nil, &out); err != nil {
		t.Fatalf("SerializeEntities() error = %v", err)
	}

	var names []string
	for _, c := range out.Entities[0].Components {
		names = append(names, c.Name)
	}
	want := []string{"alpha", "lamp", "mid", "root", "zeta"}
	if !slices.Equal(names, want) {
		t.Errorf("component names = %v, want %v", names, want)
	}
}

func TestSerializeEntities_Velocity(t *testing.T) {
	primitive := world.NewEntity("ball", "Ball")
	body := world.NewComponent("body", "Sphere", world.KindPrimitive)
	body.Mobility = world.Movable
	body.Body.LinearVelocity = world.Vector{X: 5}
	body.Body.AngularVelocity = world.Vector{Z: 1}
	primitive.AddComponent(body)

	static := world.NewEntity("wall", "Wall")
	wallRoot := world.NewComponent("root", "Scene", world.KindScene)
	wallRoot.Mobility = world.Static
	wallRoot.Velocity = world.Vector{X: 9}
	static.AddComponent(wallRoot)

	var out record.SlotData
	entities := []*world.Entity{primitive, crate("box", 1), static}
	if err := SerializeEntities(entities, 0, len(entities), capture.SaveAll{}, nil, &out); err != nil {
		t.Fatalf("SerializeEntities() error = %v", err)
	}

	ball := out.Entities[0]
	if ball.LinearVelocity == nil || *ball.LinearVelocity != (world.Vector{X: 5}) {
		t.Errorf("primitive linear velocity = %v, want {5 0 0}", ball.LinearVelocity)
	}
	if ball.AngularVelocity == nil || *ball.AngularVelocity != (world.Vector{Z: 1}) {
		t.Errorf("primitive angular velocity = %v, want {0 0 1}", ball.AngularVelocity)
	}
	if c, _ := ball.Component("body"); c == nil || c.Payload != nil {
		t.Errorf("primitive component payload = %v, want nil", c)
	}

	box := out.Entities[1]
	if box.LinearVelocity == nil || *box.LinearVelocity != (world.Vector{X: 1}) {
		t.Errorf("scene linear velocity = %v, want {1 0 0}", box.LinearVelocity)
	}
	if box.AngularVelocity != nil {
		t.Errorf("scene angular velocity = %v, want nil", box.AngularVelocity)
	}

	wall := out.Entities[2]
	if wall.Transform == nil {
		t.Error("static transform not captured under SaveAll")
	}
	if wall.LinearVelocity != nil || wall.AngularVelocity != nil {
		t.Errorf("static root velocity = %v/%v, want none", wall.LinearVelocity, wall.AngularVelocity)
	}
}

func TestSerializeEntities_NoTransforms(t *testing.T) {
	policy := capture.DefaultFilter()
	policy.StoreTransforms = false

	var out record.SlotData
	if err := SerializeEntities([]*world.Entity{crate("box", 1)}, 0, 1, policy, nil, &out); err != nil {
		t.Fatalf("SerializeEntities() error = %v", err)
	}
	rec := out.Entities[0]
	if rec.Transform != nil || rec.LinearVelocity != nil || rec.AngularVelocity != nil {
		t.Errorf("record carries spatial state: %+v %v %v", rec.Transform, rec.LinearVelocity, rec.AngularVelocity)
	}
	if root, _ := rec.Component("root"); root == nil || root.Transform != nil {
		t.Errorf("root component transform = %+v, want nil", root)
	}
}

func TestSerializeEntities_Session(t *testing.T) {
	session := &world.Session{Class: "Session", State: &sessionState{Gold: 7, Quest: "intro"}}
	var out record.SlotData
	if err := SerializeEntities(nil, 0, 0, nil, session, &out); err != nil {
		t.Fatalf("SerializeEntities() error = %v", err)
	}
	if out.Session == nil {
		t.Fatal("Session = nil")
	}
	obj, err := newRegistry().Decode(out.Session.Class, out.Session.Payload)
	if err != nil {
		t.Fatalf("Decode(session) error = %v", err)
	}
	if got := obj.(*sessionState); *got != (sessionState{Gold: 7, Quest: "intro"}) {
		t.Errorf("session state = %+v", got)
	}
}

func TestSerializeEntities_InvalidShard(t *testing.T) {
	entities := []*world.Entity{crate("a", 1), crate("b", 2)}
	tests := []struct {
		name         string
		start, count int
	}{
		{"negative start", -1, 1},
		{"negative count", 0, -1},
		{"past end", 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out record.SlotData
			err := SerializeEntities(entities, tt.start, tt.count, nil, nil, &out)
			if !errors.Is(err, domain.ErrInvalidShard) {
				t.Errorf("error = %v, want ErrInvalidShard", err)
			}
		})
	}
	if err := SerializeEntities(entities, 0, 1, nil, nil, nil); !errors.Is(err, domain.ErrInvalidShard) {
		t.Errorf("nil output error = %v, want ErrInvalidShard", err)
	}
}

func TestSerializer_PayloadError(t *testing.T) {
	m := metric.New(prometheus.NewRegistry())
	s := NewSerializer(nil, nil, m)

	bad := world.NewEntity("bad", "Broken")
	bad.State = &brokenState{}
	entities := []*world.Entity{bad, crate("good", 1)}

	var out record.SlotData
	if err := s.SerializeEntities(entities, 0, 2, nil, &out); err != nil {
		t.Fatalf("SerializeEntities() error = %v", err)
	}
	if len(out.Entities) != 2 {
		t.Fatalf("records = %d, want 2", len(out.Entities))
	}
	if out.Entities[0].Payload != nil {
		t.Errorf("broken payload = %v, want nil", out.Entities[0].Payload)
	}
	if out.Entities[1].Payload == nil {
		t.Error("good payload = nil")
	}
	if got := testutil.ToFloat64(m.PayloadErrors); got != 1 {
		t.Errorf("payload errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EntitiesSerialized); got != 2 {
		t.Errorf("entities serialized = %v, want 2", got)
	}
}

func TestShards_SplitEqualsSingle(t *testing.T) {
	var entities []*world.Entity
	for i := range 10 {
		e := crate(string(rune('a'+i)), int32(i))
		if i%3 == 0 {
			e.Tags = []string{"even"}
		}
		entities = append(entities, e)
	}
	session := &world.Session{Class: "Session", State: &sessionState{Gold: 1}}
	s := NewSerializer(nil, nil, nil)

	var single record.SlotData
	if err := s.SerializeEntities(entities, 0, len(entities), session, &single); err != nil {
		t.Fatalf("SerializeEntities() error = %v", err)
	}

	// Run the second shard first to show merge order does not depend on
	// completion order.
	first := &SerializeTask{Serializer: s, Entities: entities, Shard: Shard{Start: 0, Count: 4}, Session: session}
	second := &SerializeTask{Serializer: s, Entities: entities, Shard: Shard{Start: 4, Count: 6}}
	for _, w := range []task.Work{second, first} {
		if err := task.New(w).StartSync(t.Context()); err != nil {
			t.Fatalf("StartSync() error = %v", err)
		}
	}
	if first.Err != nil || second.Err != nil {
		t.Fatalf("shard errors = %v, %v", first.Err, second.Err)
	}

	merged := MergeShards([]*SerializeTask{second, first})
	if !reflect.DeepEqual(merged, single) {
		t.Errorf("merged shards differ from single shard:\n got %+v\nwant %+v", merged, single)
	}
}

func TestPlanShards(t *testing.T) {
	tests := []struct {
		name               string
		n, minSize, maxNum int
		wantCount          int
	}{
		{"empty", 0, 10, 4, 0},
		{"below minimum", 5, 10, 4, 1},
		{"exact multiple", 40, 10, 4, 4},
		{"capped", 1000, 10, 4, 4},
		{"uneven", 25, 10, 4, 2},
		{"zero sizes clamp", 3, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shards := PlanShards(tt.n, tt.minSize, tt.maxNum)
			if len(shards) != tt.wantCount {
				t.Fatalf("PlanShards() = %d shards, want %d", len(shards), tt.wantCount)
			}
			next, lo, hi := 0, tt.n, 0
			for _, sh := range shards {
				if sh.Start != next {
					t.Fatalf("shard %+v starts at %d, want %d", sh, sh.Start, next)
				}
				next += sh.Count
				lo, hi = min(lo, sh.Count), max(hi, sh.Count)
			}
			if next != tt.n {
				t.Errorf("shards cover %d entities, want %d", next, tt.n)
			}
			if len(shards) > 0 && hi-lo > 1 {
				t.Errorf("shard sizes range %d..%d, want difference <= 1", lo, hi)
			}
		})
	}
}

package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/yndnr/worldsave/internal/core/capture"
	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/world"
	"github.com/yndnr/worldsave/internal/storage/archive"
	"github.com/yndnr/worldsave/internal/storage/record"
	"github.com/yndnr/worldsave/internal/task"
	"github.com/yndnr/worldsave/internal/telemetry/metric"
)

// Serializer turns entities into records according to a capture policy.
// A Serializer holds no per-call state and may be shared by concurrent
// shards.
type Serializer struct {
	policy  capture.Policy
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewSerializer creates a Serializer. A nil policy captures everything;
// nil logger and metrics fall back to defaults.
func NewSerializer(policy capture.Policy, logger *slog.Logger, metrics *metric.Metrics) *Serializer {
	if policy == nil {
		policy = capture.SaveAll{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = metric.New(nil)
	}
	return &Serializer{policy: policy, logger: logger, metrics: metrics}
}

// SerializeEntities captures entities[start:start+count] with policy and
// appends the records to out. When session is non-nil its record is
// written to out first. It fails only for a shard outside the entity list.
func SerializeEntities(entities []*world.Entity, start, count int, policy capture.Policy, session *world.Session, out *record.SlotData) error {
	return NewSerializer(policy, nil, nil).SerializeEntities(entities, start, count, session, out)
}

// SerializeEntities captures one shard. Records are appended in input
// order; entities rejected by the policy produce nothing. Payload encoding
// failures are logged and counted, and leave that payload nil.
func (s *Serializer) SerializeEntities(entities []*world.Entity, start, count int, session *world.Session, out *record.SlotData) error {
	if start < 0 || count < 0 || start+count > len(entities) {
		return domain.ErrInvalidShard.WithDetails("[%d,%d) of %d entities", start, start+count, len(entities))
	}
	if out == nil {
		return domain.ErrInvalidShard.WithDetails("nil output")
	}

	if session != nil {
		out.Session = s.serializeSession(session)
	}

	for _, e := range entities[start : start+count] {
		if e == nil || !s.policy.ShouldSaveEntity(e) {
			continue
		}
		out.Entities = append(out.Entities, s.serializeEntity(e))
	}
	return nil
}

func (s *Serializer) serializeSession(session *world.Session) *record.SessionRecord {
	return &record.SessionRecord{
		Class:   session.Class,
		Payload: s.payload("session", session.Class, session.State),
	}
}

func (s *Serializer) serializeEntity(e *world.Entity) record.EntityRecord {
	p := s.policy
	rec := record.EntityRecord{
		Class:      e.Class,
		Name:       e.Name,
		Hidden:     e.Hidden,
		Procedural: p.IsProcedural(e),
	}

	if p.StoresEntityTags(e) {
		rec.Tags = slices.Clone(e.Tags)
		if rec.Tags == nil {
			rec.Tags = []string{}
		}
	} else {
		rec.Tags = make([]string, 0, len(e.Tags))
		for _, tag := range e.Tags {
			if p.IsSaveTag(tag) {
				rec.Tags = append(rec.Tags, tag)
			}
		}
	}

	if p.StoresEntityTransform(e) {
		tr := e.Transform
		rec.Transform = &tr

		if p.StoresPhysics(e) {
			if root := e.Root(); root != nil && root.IsMovable() {
				if root.Kind == world.KindPrimitive && root.Body != nil {
					lin, ang := root.Body.LinearVelocity, root.Body.AngularVelocity
					rec.LinearVelocity = &lin
					rec.AngularVelocity = &ang
				} else {
					lin := root.Velocity
					rec.LinearVelocity = &lin
				}
			}
		}
	}

	if p.StoresComponents() {
		rec.Components = s.serializeComponents(e)
	}

	rec.Payload = s.payload(e.Name, e.Class, e.State)
	s.metrics.EntitiesSerialized.Inc()
	return rec
}

// serializeComponents captures the direct components of e, sorted by name
// so that equal worlds produce equal slots.
func (s *Serializer) serializeComponents(e *world.Entity) []record.ComponentRecord {
	p := s.policy
	components := e.Components()
	slices.SortFunc(components, func(a, b *world.Component) int {
		return strings.Compare(a.Name, b.Name)
	})

	var out []record.ComponentRecord
	for _, c := range components {
		if !p.ShouldSaveComponent(c) {
			continue
		}
		cr := record.ComponentRecord{Name: c.Name, Class: c.Class}

		if p.StoresComponentTransform(c) && c.IsMovable() {
			tr := c.Relative
			cr.Transform = &tr
		}
		if p.StoresComponentTags(c) {
			cr.Tags = slices.Clone(c.Tags)
			if cr.Tags == nil {
				cr.Tags = []string{}
			}
		}
		// Primitive state is already carried by the entity's transform
		// and velocity.
		if c.Kind != world.KindPrimitive {
			cr.Payload = s.payload(e.Name+"."+c.Name, c.Class, c.State)
		}
		out = append(out, cr)
	}
	return out
}

func (s *Serializer) payload(owner, class string, state any) []byte {
	data, err := archive.MarshalFields(state)
	if err != nil {
		s.metrics.PayloadErrors.Inc()
		s.logger.Warn("payload encoding failed",
			"object", owner,
			"class", class,
			"error", err)
		return nil
	}
	return data
}

// SerializeTask serializes one shard as a background work unit. Its output
// is private to the task until the task is done.
type SerializeTask struct {
	Serializer *Serializer
	Entities   []*world.Entity
	Shard      Shard
	// Session is captured when non-nil. Set it on one shard only.
	Session *world.Session

	Out record.SlotData
	Err error
}

var _ task.Work = (*SerializeTask)(nil)

// DoWork implements task.Work.
func (t *SerializeTask) DoWork(ctx context.Context) {
	s := t.Serializer
	if s == nil {
		s = NewSerializer(nil, nil, nil)
	}
	t.Err = s.SerializeEntities(t.Entities, t.Shard.Start, t.Shard.Count, t.Session, &t.Out)
}

// Shard is a contiguous range of the entity list.
type Shard struct {
	Start int
	Count int
}

// PlanShards splits [0,n) into at most maxShards contiguous ranges of at
// least minShardSize entities each (the last range may be shorter when n
// itself is). Sizes differ by at most one.
func PlanShards(n, minShardSize, maxShards int) []Shard {
	if n <= 0 {
		return nil
	}
	if minShardSize < 1 {
		minShardSize = 1
	}
	if maxShards < 1 {
		maxShards = 1
	}

	count := n / minShardSize
	count = max(1, min(count, maxShards))

	shards := make([]Shard, count)
	base, rem := n/count, n%count
	start := 0
	for i := range shards {
		size := base
		if i < rem {
			size++
		}
		shards[i] = Shard{Start: start, Count: size}
		start += size
	}
	return shards
}

// MergeShards concatenates shard outputs in shard start order. The first
// session record found is kept.
func MergeShards(tasks []*SerializeTask) record.SlotData {
	ordered := slices.Clone(tasks)
	slices.SortFunc(ordered, func(a, b *SerializeTask) int {
		return a.Shard.Start - b.Shard.Start
	})

	var merged record.SlotData
	total := 0
	for _, t := range ordered {
		total += len(t.Out.Entities)
	}
	merged.Entities = make([]record.EntityRecord, 0, total)
	for _, t := range ordered {
		if merged.Session == nil {
			merged.Session = t.Out.Session
		}
		merged.Entities = append(merged.Entities, t.Out.Entities...)
	}
	return merged
}

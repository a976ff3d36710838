package service

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/yndnr/worldsave/internal/core/capture"
	"github.com/yndnr/worldsave/internal/core/world"
	"github.com/yndnr/worldsave/internal/storage/archive"
	"github.com/yndnr/worldsave/internal/storage/record"
)

// Restorer applies slot data back onto a world.
type Restorer struct {
	registry *archive.Registry
	policy   capture.Policy
	logger   *slog.Logger
}

// NewRestorer creates a Restorer. The registry is used to allocate state
// for objects that have none, including rebuilt procedural entities; it may
// be nil, in which case only existing state objects receive payloads.
func NewRestorer(registry *archive.Registry, policy capture.Policy, logger *slog.Logger) *Restorer {
	if policy == nil {
		policy = capture.SaveAll{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Restorer{registry: registry, policy: policy, logger: logger}
}

// RestoreEntities applies data to w with the default policy.
func RestoreEntities(w *world.World, data *record.SlotData, registry *archive.Registry) error {
	return NewRestorer(registry, nil, nil).Restore(w, data)
}

// Restore applies the session record and every entity record in data to w.
//
// Records are matched to placed entities by name. Procedural records with
// no counterpart are rebuilt and spawned; other unmatched records are
// skipped. Entities with no record are left untouched. Decode failures are
// collected and returned together once the whole pass has run.
func (r *Restorer) Restore(w *world.World, data *record.SlotData) error {
	if w == nil || data == nil {
		return nil
	}

	var errs []error
	if data.Session != nil {
		if err := r.restoreSession(w, data.Session); err != nil {
			errs = append(errs, err)
		}
	}

	for i := range data.Entities {
		rec := &data.Entities[i]
		e := w.Find(rec.Name)
		if e == nil {
			if !rec.Procedural {
				r.logger.Debug("placed entity not in world", "entity", rec.Name)
				continue
			}
			e = r.rebuild(rec)
			w.Spawn(e)
		}
		errs = append(errs, r.restoreEntity(e, rec)...)
	}
	return errors.Join(errs...)
}

func (r *Restorer) restoreSession(w *world.World, rec *record.SessionRecord) error {
	if w.Session == nil {
		w.Session = &world.Session{Class: rec.Class}
	}
	state, err := r.apply(w.Session.State, rec.Class, rec.Payload)
	if err != nil {
		return fmt.Errorf("session %s: %w", rec.Class, err)
	}
	w.Session.State = state
	return nil
}

// rebuild creates an entity for a procedural record. Components carrying a
// transform are rebuilt as scene components, the rest as basic ones.
func (r *Restorer) rebuild(rec *record.EntityRecord) *world.Entity {
	e := world.NewEntity(rec.Name, rec.Class)
	for _, cr := range rec.Components {
		kind := world.KindBasic
		if cr.Transform != nil {
			kind = world.KindScene
		}
		c := world.NewComponent(cr.Name, cr.Class, kind)
		if kind == world.KindScene {
			c.Mobility = world.Movable
		}
		e.AddComponent(c)
	}
	return e
}

func (r *Restorer) restoreEntity(e *world.Entity, rec *record.EntityRecord) []error {
	var errs []error

	e.Hidden = rec.Hidden
	r.restoreTags(e, rec.Tags)

	if rec.Transform != nil {
		e.Transform = *rec.Transform
	}
	if root := e.Root(); root != nil && root.IsMovable() {
		if rec.LinearVelocity != nil {
			if root.Body != nil {
				root.Body.LinearVelocity = *rec.LinearVelocity
			} else {
				root.Velocity = *rec.LinearVelocity
			}
		}
		if rec.AngularVelocity != nil && root.Body != nil {
			root.Body.AngularVelocity = *rec.AngularVelocity
		}
	}

	for i := range rec.Components {
		cr := &rec.Components[i]
		c, ok := e.Component(cr.Name)
		if !ok {
			r.logger.Debug("component not on entity",
				"entity", e.Name,
				"component", cr.Name)
			continue
		}
		if cr.Transform != nil {
			c.Relative = *cr.Transform
		}
		if cr.Tags != nil {
			c.Tags = slices.Clone(cr.Tags)
		}
		if cr.Payload == nil {
			continue
		}
		state, err := r.apply(c.State, cr.Class, cr.Payload)
		if err != nil {
			errs = append(errs, fmt.Errorf("component %s.%s: %w", e.Name, cr.Name, err))
			continue
		}
		c.State = state
	}

	if rec.Payload != nil {
		state, err := r.apply(e.State, rec.Class, rec.Payload)
		if err != nil {
			errs = append(errs, fmt.Errorf("entity %s: %w", e.Name, err))
		} else {
			e.State = state
		}
	}
	return errs
}

// restoreTags replaces the entity's tags when all of them were captured;
// otherwise only the save tags in the record are merged in.
func (r *Restorer) restoreTags(e *world.Entity, tags []string) {
	if tags == nil {
		return
	}
	if r.policy.StoresEntityTags(e) {
		e.Tags = slices.Clone(tags)
		return
	}
	for _, tag := range tags {
		if !e.HasTag(tag) {
			e.Tags = append(e.Tags, tag)
		}
	}
}

// apply decodes payload into state, allocating state from the registry
// when there is none. A nil state with no registered class is returned
// unchanged.
func (r *Restorer) apply(state any, class string, payload []byte) (any, error) {
	if payload == nil {
		return state, nil
	}
	if state != nil {
		if err := archive.UnmarshalFields(payload, state); err != nil {
			return state, err
		}
		return state, nil
	}
	if r.registry == nil {
		return nil, nil
	}
	if !r.registry.Has(class) {
		r.logger.Debug("no state registered for class", "class", class)
		return nil, nil
	}
	return r.registry.Decode(class, payload)
}

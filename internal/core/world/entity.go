package world

import (
	"slices"
	"sync"
)

// Mobility describes whether a spatial object may move at runtime.
type Mobility uint8

const (
	Static Mobility = iota
	Stationary
	Movable
)

// String returns the mobility name.
func (m Mobility) String() string {
	switch m {
	case Static:
		return "static"
	case Stationary:
		return "stationary"
	case Movable:
		return "movable"
	default:
		return "unknown"
	}
}

// ComponentKind classifies what a component carries besides its own state.
type ComponentKind uint8

const (
	// KindBasic components have no spatial placement.
	KindBasic ComponentKind = iota
	// KindScene components have a relative transform and motion tracking.
	KindScene
	// KindPrimitive components are scene components backed by a physics body.
	KindPrimitive
)

// IsSpatial reports whether components of this kind have a transform.
func (k ComponentKind) IsSpatial() bool {
	return k == KindScene || k == KindPrimitive
}

// Body is the physics state of a primitive component.
type Body struct {
	LinearVelocity  Vector
	AngularVelocity Vector // radians per second
}

// Component is a sub-object attached to an entity.
type Component struct {
	Name     string
	Class    string
	Kind     ComponentKind
	Mobility Mobility
	Tags     []string

	// Relative is the transform relative to the owning entity.
	Relative Transform
	// Velocity is the generic tracked velocity of a scene component.
	Velocity Vector
	// Body is set for primitive components only.
	Body *Body

	// State points to the component's persisted fields.
	State any

	owner *Entity
}

// NewComponent creates a component of the given kind.
func NewComponent(name, class string, kind ComponentKind) *Component {
	c := &Component{
		Name:     name,
		Class:    class,
		Kind:     kind,
		Relative: IdentityTransform,
	}
	if kind == KindPrimitive {
		c.Body = &Body{}
	}
	return c
}

// Owner returns the entity this component is attached to, or nil.
func (c *Component) Owner() *Entity {
	return c.owner
}

// IsMovable reports whether the component is spatial and movable.
func (c *Component) IsMovable() bool {
	return c.Kind.IsSpatial() && c.Mobility == Movable
}

// HasTag reports whether the component carries tag.
func (c *Component) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// Entity is a placed or spawned object in the world.
type Entity struct {
	Name   string
	Class  string
	Hidden bool
	// Spawned marks entities created at runtime rather than placed in the level.
	Spawned bool
	Tags    []string

	Transform Transform
	State     any

	mu         sync.RWMutex
	root       *Component
	components map[string]*Component
}

// NewEntity creates an entity with an identity transform.
func NewEntity(name, class string) *Entity {
	return &Entity{
		Name:       name,
		Class:      class,
		Transform:  IdentityTransform,
		components: make(map[string]*Component),
	}
}

// AddComponent attaches c to e, replacing any component with the same name.
// The first spatial component attached becomes the root.
func (e *Entity) AddComponent(c *Component) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.components == nil {
		e.components = make(map[string]*Component)
	}
	if prev, ok := e.components[c.Name]; ok {
		prev.owner = nil
		if e.root == prev {
			e.root = nil
		}
	}
	c.owner = e
	e.components[c.Name] = c
	if e.root == nil && c.Kind.IsSpatial() {
		e.root = c
	}
}

// RemoveComponent detaches the named component.
func (e *Entity) RemoveComponent(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.components[name]
	if !ok {
		return
	}
	c.owner = nil
	delete(e.components, name)
	if e.root == c {
		e.root = nil
	}
}

// SetRoot makes c the root component. c must already be attached to e.
func (e *Entity) SetRoot(c *Component) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c != nil && c.owner != e {
		return
	}
	e.root = c
}

// Root returns the root spatial component, or nil.
func (e *Entity) Root() *Component {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root
}

// Component returns the named component.
func (e *Entity) Component(name string) (*Component, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.components[name]
	return c, ok
}

// Components returns the attached components. The order is unspecified and
// may differ between calls.
func (e *Entity) Components() []*Component {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Component, 0, len(e.components))
	for _, c := range e.components {
		out = append(out, c)
	}
	return out
}

// NumComponents returns the number of attached components.
func (e *Entity) NumComponents() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.components)
}

// HasTag reports whether the entity carries tag.
func (e *Entity) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

// IsRootMovable reports whether the entity has a movable root component.
func (e *Entity) IsRootMovable() bool {
	root := e.Root()
	return root != nil && root.IsMovable()
}

// Session is the session-scoped object holding state not owned by any entity.
type Session struct {
	Class string
	State any
}

// World is the set of objects captured by a save.
type World struct {
	Level    string
	Entities []*Entity
	Session  *Session
}

// Find returns the first entity with the given name.
func (w *World) Find(name string) *Entity {
	for _, e := range w.Entities {
		if e != nil && e.Name == name {
			return e
		}
	}
	return nil
}

// Spawn appends a runtime-created entity.
func (w *World) Spawn(e *Entity) {
	e.Spawned = true
	w.Entities = append(w.Entities, e)
}

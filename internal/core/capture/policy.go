package capture

import (
	"slices"
	"strings"

	"github.com/yndnr/worldsave/internal/config"
	"github.com/yndnr/worldsave/internal/core/world"
)

// Opt-out tags recognised on entities and components.
const (
	TagNoSave          = "!Save"
	TagNoSaveTransform = "!SaveTransform"
	TagNoSavePhysics   = "!SavePhysics"
	TagNoSaveTags      = "!SaveTags"
)

// DefaultSaveTagPrefix marks tags that survive even when tag capture is off.
const DefaultSaveTagPrefix = "!Save"

// Policy answers what to capture for a given entity or component.
//
// StoresPhysics is only consulted after StoresEntityTransform returned true.
type Policy interface {
	ShouldSaveEntity(e *world.Entity) bool
	ShouldSaveComponent(c *world.Component) bool
	IsProcedural(e *world.Entity) bool

	StoresEntityTags(e *world.Entity) bool
	StoresComponentTags(c *world.Component) bool
	StoresEntityTransform(e *world.Entity) bool
	StoresComponentTransform(c *world.Component) bool
	StoresPhysics(e *world.Entity) bool

	// StoresComponents switches component traversal on or off globally.
	StoresComponents() bool
	// IsSaveTag reports whether tag is kept when full tag capture is off.
	IsSaveTag(tag string) bool
}

// ClassFilter allows or ignores classes by name. An empty Allowed list
// allows every class not explicitly ignored.
type ClassFilter struct {
	Allowed []string
	Ignored []string
}

// IsAllowed reports whether class passes the filter.
func (f ClassFilter) IsAllowed(class string) bool {
	if slices.Contains(f.Ignored, class) {
		return false
	}
	return len(f.Allowed) == 0 || slices.Contains(f.Allowed, class)
}

// Filter is the configurable Policy.
type Filter struct {
	Entities   ClassFilter
	Components ClassFilter

	StoreComponents bool
	StoreTransforms bool
	StorePhysics    bool
	StoreTags       bool

	// SaveTagPrefix selects tags kept when tag capture is off.
	// Empty means DefaultSaveTagPrefix.
	SaveTagPrefix string
	// KeepTags are additional tags kept when tag capture is off.
	KeepTags []string
}

// DefaultFilter captures everything that is not opted out by tag.
func DefaultFilter() *Filter {
	return &Filter{
		StoreComponents: true,
		StoreTransforms: true,
		StorePhysics:    true,
		StoreTags:       true,
	}
}

// FilterFromConfig builds a Filter from the filter configuration section.
func FilterFromConfig(cfg config.FilterSection) *Filter {
	return &Filter{
		Entities: ClassFilter{
			Allowed: slices.Clone(cfg.AllowedClasses),
			Ignored: slices.Clone(cfg.IgnoredClasses),
		},
		Components: ClassFilter{
			Allowed: slices.Clone(cfg.AllowedComponents),
			Ignored: slices.Clone(cfg.IgnoredComponents),
		},
		StoreComponents: cfg.StoreComponents,
		StoreTransforms: cfg.StoreTransforms,
		StorePhysics:    cfg.StorePhysics,
		StoreTags:       cfg.StoreTags,
		SaveTagPrefix:   cfg.SaveTagPrefix,
		KeepTags:        slices.Clone(cfg.KeepTags),
	}
}

var _ Policy = (*Filter)(nil)

func (f *Filter) ShouldSaveEntity(e *world.Entity) bool {
	return e != nil && f.Entities.IsAllowed(e.Class) && !e.HasTag(TagNoSave)
}

func (f *Filter) ShouldSaveComponent(c *world.Component) bool {
	return c != nil && f.Components.IsAllowed(c.Class) && !c.HasTag(TagNoSave)
}

// IsProcedural reports whether e was spawned at runtime.
func (f *Filter) IsProcedural(e *world.Entity) bool {
	return e.Spawned
}

func (f *Filter) StoresEntityTags(e *world.Entity) bool {
	return f.StoreTags && !e.HasTag(TagNoSaveTags)
}

func (f *Filter) StoresComponentTags(c *world.Component) bool {
	return f.StoreTags && !c.HasTag(TagNoSaveTags)
}

// StoresEntityTransform requires a movable root component.
func (f *Filter) StoresEntityTransform(e *world.Entity) bool {
	return f.StoreTransforms && e.IsRootMovable() && !e.HasTag(TagNoSaveTransform)
}

// StoresComponentTransform requires a spatial component.
func (f *Filter) StoresComponentTransform(c *world.Component) bool {
	return f.StoreTransforms && c.Kind.IsSpatial() && !c.HasTag(TagNoSaveTransform)
}

func (f *Filter) StoresPhysics(e *world.Entity) bool {
	return f.StorePhysics && !e.HasTag(TagNoSavePhysics)
}

func (f *Filter) StoresComponents() bool {
	return f.StoreComponents
}

func (f *Filter) IsSaveTag(tag string) bool {
	prefix := f.SaveTagPrefix
	if prefix == "" {
		prefix = DefaultSaveTagPrefix
	}
	return strings.HasPrefix(tag, prefix) || slices.Contains(f.KeepTags, tag)
}

// SaveAll captures every entity and component with all optional state.
type SaveAll struct{}

var _ Policy = SaveAll{}

func (SaveAll) ShouldSaveEntity(e *world.Entity) bool            { return e != nil }
func (SaveAll) ShouldSaveComponent(c *world.Component) bool      { return c != nil }
func (SaveAll) IsProcedural(e *world.Entity) bool                { return e.Spawned }
func (SaveAll) StoresEntityTags(*world.Entity) bool              { return true }
func (SaveAll) StoresComponentTags(*world.Component) bool        { return true }
func (SaveAll) StoresEntityTransform(*world.Entity) bool         { return true }
func (SaveAll) StoresComponentTransform(c *world.Component) bool { return c.Kind.IsSpatial() }
func (SaveAll) StoresPhysics(*world.Entity) bool                 { return true }
func (SaveAll) StoresComponents() bool                           { return true }
func (SaveAll) IsSaveTag(string) bool                            { return true }

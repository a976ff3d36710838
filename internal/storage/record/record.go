package record

import (
	"time"

	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/world"
)

// ComponentRecord is one captured component.
type ComponentRecord struct {
	Name      string
	Class     string
	Transform *world.Transform
	// Tags is nil when tags were not captured.
	Tags []string
	// Payload is nil for primitive components.
	Payload []byte
}

// EntityRecord is one captured entity.
type EntityRecord struct {
	Class      string
	Name       string
	Hidden     bool
	Procedural bool
	Tags       []string

	Transform       *world.Transform
	LinearVelocity  *world.Vector
	AngularVelocity *world.Vector

	Components []ComponentRecord
	Payload    []byte
}

// Component returns the component record with the given name.
func (r *EntityRecord) Component(name string) (*ComponentRecord, bool) {
	for i := range r.Components {
		if r.Components[i].Name == name {
			return &r.Components[i], true
		}
	}
	return nil, false
}

// SessionRecord holds the session object's persisted fields.
type SessionRecord struct {
	Class   string
	Payload []byte
}

// SlotData is the body of a slot: the session record and entity records in
// capture order.
type SlotData struct {
	Session  *SessionRecord
	Entities []EntityRecord
}

// SlotInfo is the lightweight header of a slot.
type SlotInfo struct {
	domain.Lifetime

	ID         string
	Name       string
	Subname    string
	SaveDate   time.Time
	PlayedTime time.Duration
	Level      string
	// Custom is user-defined metadata.
	Custom map[string]string
}

// SlotFile is a complete persisted slot.
type SlotFile struct {
	Info *SlotInfo
	Data SlotData
}

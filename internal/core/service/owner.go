package service

import (
	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/pkg/cmap"
)

// Owner adopts objects that background tasks build on its behalf.
//
// Track is called from a worker goroutine when the object is created;
// Release is called on the owner goroutine once the object has been handed
// over. Anything still tracked when the owner is torn down is destroyed,
// so a late hand-over drops it instead of delivering a dangling object.
type Owner interface {
	Track(l *domain.Lifetime)
	Release(l *domain.Lifetime)
}

// Tracker is a concurrent Owner.
type Tracker struct {
	objects *cmap.Map[*domain.Lifetime, struct{}]
}

var _ Owner = (*Tracker)(nil)

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{objects: cmap.New[*domain.Lifetime, struct{}]()}
}

// Track records l.
func (t *Tracker) Track(l *domain.Lifetime) {
	t.objects.Set(l, struct{}{})
}

// Release forgets l.
func (t *Tracker) Release(l *domain.Lifetime) {
	t.objects.Delete(l)
}

// Len returns the number of objects still in flight.
func (t *Tracker) Len() int {
	return t.objects.Count()
}

// DestroyAll destroys and forgets every tracked object. It returns the
// number destroyed.
func (t *Tracker) DestroyAll() int {
	objs := t.objects.Drain()
	for l := range objs {
		l.Destroy()
	}
	return len(objs)
}

package domain

import "sync/atomic"

const (
	flagAsync uint32 = 1 << iota
	flagDestroyed
)

// Lifetime tracks ownership of an object built on a worker goroutine.
//
// While the async flag is set the object belongs to the task that created
// it. The owner clears the flag when the object is handed over. An object
// destroyed in the meantime (its owner was torn down) reports !IsValid and
// must be dropped instead of delivered. The zero value is a live,
// owner-held object.
type Lifetime struct {
	flags atomic.Uint32
}

// MarkAsync flags the object as owned by a background task.
func (l *Lifetime) MarkAsync() {
	l.flags.Or(flagAsync)
}

// ClearAsync hands the object back to its owner.
func (l *Lifetime) ClearAsync() {
	l.flags.And(^flagAsync)
}

// IsAsync reports whether a background task still owns the object.
func (l *Lifetime) IsAsync() bool {
	return l.flags.Load()&flagAsync != 0
}

// Destroy marks the object as no longer usable.
func (l *Lifetime) Destroy() {
	l.flags.Or(flagDestroyed)
}

// IsValid reports whether the object has not been destroyed.
// It is safe to call on a nil receiver.
func (l *Lifetime) IsValid() bool {
	return l != nil && l.flags.Load()&flagDestroyed == 0
}

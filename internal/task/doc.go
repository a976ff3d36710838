// Package task runs units of background work and hands their results back
// to an owning goroutine.
//
// A Work unit runs once on a Pool worker and must not touch owner state.
// When it completes, the owner calls Queue.Tick (typically once per frame
// or loop iteration) and every finished unit that implements Finisher has
// AfterFinish invoked there, on the owner's goroutine. A started unit is
// never interrupted.
package task

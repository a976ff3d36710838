// Package domain holds cross-cutting domain primitives of the save engine:
//
//   - Errors: coded domain errors shared by archive, storage and services
//   - Lifetime: async-ownership and liveness markers for objects built off
//     the owning goroutine
//
// It has no IO dependencies.
package domain

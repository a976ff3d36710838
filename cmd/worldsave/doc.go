// Package main provides the entry point for worldsave.
//
// worldsave manages world save slots from the command line:
//
//   - Listing slots and their headers
//   - Inspecting the records stored in a slot
//   - Deleting and pruning slots
//   - Watching a slot directory for changes
//
// Usage:
//
//	worldsave [global flags] command [flags]
//	worldsave --dir ./saves slots list --sort
//	worldsave -o json slots inspect autosave-0
//	worldsave demo save quick --entities 500
package main

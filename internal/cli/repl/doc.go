// Package repl provides a line-oriented interactive shell.
//
//   - repl.go: read loop and command dispatch
//   - completer.go: prefix completion and "did you mean" suggestions
//   - history.go: command history, optionally persisted to a file
//
// Commands are registered by the caller. The loop runs on the caller's
// goroutine, and BeforePrompt runs there too, so it can deliver results
// that must be observed on a single owner goroutine.
package repl

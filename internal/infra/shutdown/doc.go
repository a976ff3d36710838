// Package shutdown runs cleanup hooks when a long-running command is
// interrupted.
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(store.Close)
//	err := h.Wait(ctx) // returns after SIGINT/SIGTERM or ctx is done
package shutdown

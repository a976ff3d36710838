// Package buildinfo exposes version information injected at build time:
//
//	go build -ldflags "-X github.com/yndnr/worldsave/internal/infra/buildinfo.Version=v1.0.0"
//
// Values not injected fall back to the module build info recorded by the
// Go toolchain.
package buildinfo

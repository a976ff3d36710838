// Package config defines the worldsave configuration.
//
//   - spec.go: Config struct definition
//   - default.go: default values
//   - verify.go: validation
//   - load.go: loading through internal/infra/confloader
//
// Sources are layered flag > env > file > default; environment variables
// use the WORLDSAVE_ prefix.
package config

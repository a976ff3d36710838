// Package command provides the worldsave CLI commands.
//
// Commands are defined with urfave/cli/v2:
//
//   - root.go: application, global flags and the shared environment
//   - slots.go: slot listing, inspection, deletion and watching
//   - demo.go: saving and loading a generated sample world
//   - bench.go: repeated save/load rounds, optionally profiled
//   - shell.go: interactive session over one sample world
//   - keygen.go: slot encryption keys
//   - config.go: showing and validating configuration
//   - version.go: build information
//
// Every command resolves configuration the same way: defaults, then the
// --config file, then WORLDSAVE_ environment variables, then global flags.
package command

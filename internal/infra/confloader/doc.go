// Package confloader layers configuration sources with koanf.
//
// Priority (highest to lowest):
//
//  1. Values set with LoadMap (command-line flags)
//  2. Environment variables (WORLDSAVE_SECTION_KEY)
//  3. The YAML configuration file
//  4. Defaults already present in the target struct
//
// Watcher reports edits to the configuration file so long-running
// commands can reload it.
package confloader

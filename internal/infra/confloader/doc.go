// Package confloader loads configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Maps loaded last (command-line flags)
//  2. Environment variables (CANVASMESH_ prefix)
//  3. The YAML configuration file
//  4. Values already held by the target struct (defaults)
//
// A Watcher reports edits to the configuration file; the server uses it
// to apply log level changes without a restart.
package confloader

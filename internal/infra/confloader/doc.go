// Package confloader loads usagemesh configuration and watches files that
// can change at runtime.
//
// Sources, later overriding earlier:
//
//  1. Defaults (the target struct as passed in)
//  2. YAML configuration file
//  3. Environment variables with the USAGEMESH_ prefix
//  4. Explicit overrides (LoadMap, used for CLI flags)
//
// Environment variables nest with a double underscore, so
// USAGEMESH_STATS__FETCH_TIMEOUT sets stats.fetch_timeout.
//
// Watcher reports changes of individual files (the license key, the config
// file) so the server can hot reload them.
package confloader

// Package confloader loads configuration from multiple sources.
//
// It wraps koanf. Sources, highest priority first:
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (MINIKV_<SECTION>_<KEY>)
//  3. YAML configuration file
//  4. Values already set on the target struct (defaults)
//
// Watcher reports changes to configuration files via fsnotify so callers
// can re-read the settings that may change at runtime.
package confloader

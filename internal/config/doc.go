// Package config loads, normalizes, and validates the TOML configuration
// shared by the roost daemon and CLI.
//
// Load applies repository defaults, overlays the config file when present,
// expands ~ in path fields, and pulls secrets from the environment
// (ROOST_API_TOKEN, ROOST_NTFY_TOPIC) so they can stay out of the file.
package config

// Package config loads and validates the loader configuration from
// environment variables (BEARLOADER_* prefix) and an optional YAML file,
// and resolves the local storage paths for persisted state.
//
// Environment variables take precedence over the config file. All timing
// constants that govern the license client (transport timeouts, retry
// budgets, cache TTL, session refresh interval) live here so tests can
// shrink them without touching the client code.
package config

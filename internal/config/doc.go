// Package config reads the zbridge TOML file and fills in defaults.
//
// Load resolves the file path (--config, then ~/.config/zbridge/config.toml),
// decodes it, applies environment fallbacks such as ZBRIDGE_HOST_EXECUTABLE,
// ZBRIDGE_COORDINATOR_SECRET and AVALON_PROJECTS, expands ~ in every path and
// then validates the result. Callers get a *Config whose paths are absolute
// and whose timing fields are positive.
package config

// Package config loads, validates, and defaults the TOML configuration.
//
// Configuration resolves from an explicit --config path, then
// ~/.config/recap/config.toml, then ./recap.toml, falling back to built-in
// defaults when no file exists. Path fields are tilde-expanded and absolute
// after Load.
package config

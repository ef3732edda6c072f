// SPDX-License-Identifier: MPL-2.0

// Package config loads the psmbuild user configuration through Viper, with
// CUE as the file format.
//
// The file lives at $XDG_CONFIG_HOME/psmbuild/config.cue on Linux (default
// ~/.config), ~/Library/Application Support/psmbuild/config.cue on macOS and
// %APPDATA%\psmbuild\config.cue on Windows. It is validated against the
// embedded schema (config_schema.cue) before being merged over the defaults;
// PSMBUILD_* environment variables override both.
//
// The user configuration covers machine-level choices: the version-control
// backend, the analyzer command, the output encoding and UI preferences.
// Per-project choices live in psmbuild.toml (package project).
package config

// SPDX-License-Identifier: MPL-2.0

// Package config handles crxhost configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/crxhost/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/crxhost/config.cue on macOS, %APPDATA%\crxhost\config.cue
// on Windows), falling back to ./config.cue. CRXHOST_* environment variables override
// file values (CRXHOST_LISTEN, CRXHOST_LOG_LEVEL, ...).
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config

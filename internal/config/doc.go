// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for the assistant.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides. Classifier thresholds can be hot-reloaded while the
// assistant is running by watching the config file for writes.
//
// File location (in order of precedence):
//   - Path given explicitly (e.g. via -config)
//   - ~/.cj-assistant/config.toml
//   - Built-in defaults
package config

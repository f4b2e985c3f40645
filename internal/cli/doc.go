// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses command-line arguments for the assistant binary.
// Command handlers live in main; this package only maps argv to a
// Command value and its flags.
package cli

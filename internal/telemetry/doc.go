// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records routing decisions to a local SQLite
// database and aggregates them into the statistics shown on the study
// dashboard. Recording is best-effort: a telemetry failure never blocks
// answering a question.
package telemetry

// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/davidbennett1979/classical-japanese-assistant/internal/classifier"
)

// =============================================================================
// DECISION LOG
// =============================================================================

// Decision is one recorded routing decision.
type Decision struct {
	ID          int64
	CreatedAt   time.Time
	SessionID   string
	Question    string
	Route       classifier.Route
	Confidence  float64
	Explanation string

	HitDensity      float64
	AvgDistance     float64
	SourceDiversity int
	ResultCount     int

	// Overridden marks a manual route choice. Route always holds the
	// automatic decision that Confidence and Explanation describe;
	// OverrideRoute holds the route actually used to answer.
	Overridden    bool
	OverrideRoute string
}

// Store persists routing decisions. Safe for concurrent use; SQLite is
// limited to a single writer connection.
type Store struct {
	db *sql.DB
}

const decisionSchema = `
CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	session_id TEXT NOT NULL,
	question TEXT NOT NULL,
	route TEXT NOT NULL,
	confidence REAL NOT NULL,
	explanation TEXT NOT NULL,
	hit_density REAL NOT NULL,
	avg_distance REAL NOT NULL,
	source_diversity INTEGER NOT NULL,
	result_count INTEGER NOT NULL,
	overridden INTEGER NOT NULL DEFAULT 0,
	override_route TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_decisions_route ON decisions(route);
CREATE INDEX IF NOT EXISTS idx_decisions_session ON decisions(session_id);
`

// Open opens (creating if needed) the decision log at path. Use
// ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(decisionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends one routing decision.
func (s *Store) Record(ctx context.Context, d Decision) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			created_at, session_id, question, route, confidence, explanation,
			hit_density, avg_distance, source_diversity, result_count,
			overridden, override_route
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		createdAt, d.SessionID, d.Question, d.Route.String(), d.Confidence, d.Explanation,
		d.HitDensity, d.AvgDistance, d.SourceDiversity, d.ResultCount,
		d.Overridden, d.OverrideRoute,
	)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// Recent returns the newest decisions, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, session_id, question, route, confidence, explanation,
			hit_density, avg_distance, source_diversity, result_count,
			overridden, override_route
		FROM decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var route string
		if err := rows.Scan(
			&d.ID, &d.CreatedAt, &d.SessionID, &d.Question, &route, &d.Confidence, &d.Explanation,
			&d.HitDensity, &d.AvgDistance, &d.SourceDiversity, &d.ResultCount,
			&d.Overridden, &d.OverrideRoute,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		if r, err := classifier.ParseRoute(route); err == nil {
			d.Route = r
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// ROUTE STATISTICS
// =============================================================================

// RouteStats aggregates the decision log for the dashboard.
type RouteStats struct {
	Total            int
	AvgConfidence    float64
	RouteCounts      map[string]int
	RoutePercentages map[string]float64
	OverrideCount    int
}

// Stats computes routing statistics over all recorded decisions.
func (s *Store) Stats(ctx context.Context) (RouteStats, error) {
	stats := RouteStats{
		RouteCounts:      make(map[string]int),
		RoutePercentages: make(map[string]float64),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT route, COUNT(*), SUM(overridden) FROM decisions GROUP BY route`)
	if err != nil {
		return stats, fmt.Errorf("failed to query route stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var route string
		var count, overrides int
		if err := rows.Scan(&route, &count, &overrides); err != nil {
			return stats, fmt.Errorf("failed to scan route stats: %w", err)
		}
		stats.RouteCounts[route] = count
		stats.Total += count
		stats.OverrideCount += overrides
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if stats.Total == 0 {
		return stats, nil
	}

	for route, count := range stats.RouteCounts {
		stats.RoutePercentages[route] = float64(count) / float64(stats.Total) * 100
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT AVG(confidence) FROM decisions`).Scan(&stats.AvgConfidence); err != nil {
		return stats, fmt.Errorf("failed to compute average confidence: %w", err)
	}
	return stats, nil
}

// Format renders the statistics as the dashboard's markdown block.
func (rs RouteStats) Format() string {
	if rs.Total == 0 {
		return "📊 **Knowledge Routing Statistics**\n\nNo queries processed yet."
	}

	emojis := map[string]string{
		"RAG":     "📚",
		"GENERAL": "🧠",
		"HYBRID":  "🔄",
	}

	out := fmt.Sprintf("📊 **Knowledge Routing Statistics**\n\n**Total Queries**: %d\n**Average Confidence**: %.1f%%\n\n**Route Distribution**:",
		rs.Total, rs.AvgConfidence*100)

	routes := make([]string, 0, len(rs.RoutePercentages))
	for route := range rs.RoutePercentages {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	for _, route := range routes {
		emoji := emojis[route]
		if emoji == "" {
			emoji = "❓"
		}
		out += fmt.Sprintf("\n- %s **%s**: %.1f%%", emoji, route, rs.RoutePercentages[route])
	}
	return out
}

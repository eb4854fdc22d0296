package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Table names.
const (
	tableSkills           = "skills"
	tableSkillEdges       = "skill_edges"
	tableCompetencies     = "competencies"
	tableCompetencyLinks  = "competency_links"
	tableCompetencySkills = "competency_skills"
	tableUserCompetencies = "user_competencies"
	tableUserCareerPaths  = "user_career_paths"
	tableCompetencyEvents = "competency_events"
)

// ddl creates every table the store needs. Statements are idempotent.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS skills (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS skills_name ON skills (name COLLATE NOCASE)`,
	`CREATE TABLE IF NOT EXISTS skill_edges (
		parent_id TEXT NOT NULL,
		child_id  TEXT NOT NULL,
		position  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (parent_id, child_id)
	)`,
	`CREATE TABLE IF NOT EXISTS competencies (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS competency_links (
		parent_id TEXT NOT NULL,
		child_id  TEXT NOT NULL,
		position  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (parent_id, child_id)
	)`,
	`CREATE TABLE IF NOT EXISTS competency_skills (
		competency_id TEXT NOT NULL,
		skill_id      TEXT NOT NULL,
		position      INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (competency_id, skill_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_competencies (
		user_id             TEXT NOT NULL,
		competency_id       TEXT NOT NULL,
		coverage_percentage REAL NOT NULL DEFAULT 0,
		proficiency_level   TEXT NOT NULL DEFAULT 'undefined',
		verified_skills     TEXT NOT NULL DEFAULT '[]',
		version             INTEGER NOT NULL DEFAULT 1,
		updated_at          INTEGER NOT NULL,
		PRIMARY KEY (user_id, competency_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_career_paths (
		user_id       TEXT NOT NULL,
		competency_id TEXT NOT NULL,
		created_at    INTEGER NOT NULL,
		PRIMARY KEY (user_id, competency_id)
	)`,
	`CREATE TABLE IF NOT EXISTS competency_events (
		sequence      INTEGER PRIMARY KEY,
		timestamp     INTEGER NOT NULL,
		run_id        TEXT NOT NULL,
		user_id       TEXT NOT NULL,
		competency_id TEXT NOT NULL,
		from_coverage REAL NOT NULL,
		to_coverage   REAL NOT NULL,
		from_level    TEXT NOT NULL,
		to_level      TEXT NOT NULL,
		cause         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS competency_events_user ON competency_events (user_id, competency_id)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

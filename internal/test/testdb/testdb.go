// Package testdb opens in-memory SQLite databases with the project
// schema. The store and engine keep their SQL in the subset shared by
// PostgreSQL and SQLite, so the same code paths run here and in
// production.
package testdb

import (
	"database/sql"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE projects (
	id TEXT PRIMARY KEY,
	owner_id TEXT,
	title TEXT NOT NULL DEFAULT '',
	genre TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	character_notes TEXT NOT NULL DEFAULT '',
	location_notes TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	cover_image_url TEXT NOT NULL DEFAULT '',
	last_updated TIMESTAMP NOT NULL
);

CREATE TABLE project_settings (
	project_id TEXT PRIMARY KEY,
	camera_style TEXT NOT NULL DEFAULT '',
	lighting_mood TEXT NOT NULL DEFAULT '',
	sound_ambience TEXT NOT NULL DEFAULT ''
);

CREATE TABLE scenes (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	sequence_number INTEGER NOT NULL %s,
	status TEXT NOT NULL DEFAULT 'planning',
	idea TEXT NOT NULL DEFAULT '',
	enhanced TEXT NOT NULL DEFAULT '',
	context_summary TEXT NOT NULL DEFAULT '',
	generated BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE scene_settings (
	scene_id TEXT PRIMARY KEY,
	camera_style TEXT NOT NULL DEFAULT '',
	lighting_mood TEXT NOT NULL DEFAULT '',
	sound_ambience TEXT NOT NULL DEFAULT ''
);

CREATE TABLE media (
	id TEXT PRIMARY KEY,
	scene_id TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT 'video',
	storage_url TEXT NOT NULL DEFAULT ''
);
`

// Open returns an in-memory database with the project schema.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	return open(t, "")
}

// OpenWithSequenceLimit adds a CHECK constraint on scene sequence
// numbers, used to force a mid-batch write failure.
func OpenWithSequenceLimit(t *testing.T, limit int) *sql.DB {
	t.Helper()
	return open(t, fmt.Sprintf("CHECK (sequence_number <= %d)", limit))
}

func open(t *testing.T, sequenceCheck string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// The in-memory database lives as long as its single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(fmt.Sprintf(schema, sequenceCheck)); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}
	return db
}

package repository

import "strings"

// Schema definitions for the Orbit database.
// Compatible with both SQLite and PostgreSQL; {{id}} is replaced with the
// driver's auto-increment primary key.

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id {{id}},
    username TEXT NOT NULL UNIQUE,
    funds BIGINT NOT NULL CHECK (funds >= 0),
    created_at TIMESTAMP NOT NULL
);
`

const schemaMissions = `
CREATE TABLE IF NOT EXISTS missions (
    id {{id}},
    name TEXT NOT NULL UNIQUE,
    target TEXT NOT NULL,
    distance BIGINT NOT NULL,
    cost BIGINT NOT NULL,
    payout BIGINT NOT NULL,
    duration BIGINT NOT NULL
);
`

// schemaUserMissions defines started missions. completed_at is set exactly
// once, together with the terminal status.
const schemaUserMissions = `
CREATE TABLE IF NOT EXISTS user_missions (
    id {{id}},
    user_id BIGINT NOT NULL REFERENCES users(id),
    mission_id BIGINT NOT NULL REFERENCES missions(id),
    start_time TIMESTAMP NOT NULL,
    status TEXT NOT NULL,
    fuel_invest BIGINT NOT NULL DEFAULT 0,
    crew_invest BIGINT NOT NULL DEFAULT 0,
    research_invest BIGINT NOT NULL DEFAULT 0,
    completed_at TIMESTAMP NULL
);

CREATE INDEX IF NOT EXISTS idx_user_missions_user ON user_missions(user_id);
CREATE INDEX IF NOT EXISTS idx_user_missions_status ON user_missions(status);
`

const schemaMissionEvents = `
CREATE TABLE IF NOT EXISTS mission_events (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    user_mission_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    mission_id BIGINT NOT NULL,
    status TEXT NOT NULL,
    funds_after BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mission_events_user ON mission_events(user_id, created_at);
`

// AllSchemas returns all schema statements in order for driver.
func AllSchemas(driver string) []string {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		id = "BIGSERIAL PRIMARY KEY"
	}

	schemas := []string{
		schemaUsers,
		schemaMissions,
		schemaUserMissions,
		schemaMissionEvents,
	}
	for i, s := range schemas {
		schemas[i] = strings.ReplaceAll(s, "{{id}}", id)
	}
	return schemas
}

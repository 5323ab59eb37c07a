package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS plates (
		id              BIGSERIAL PRIMARY KEY,
		number          TEXT NOT NULL,
		normalized      TEXT NOT NULL,
		country         TEXT,
		region          TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_plates_normalized ON plates(normalized);`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id              BIGSERIAL PRIMARY KEY,
		plate_id        BIGINT REFERENCES plates(id),
		make            TEXT,
		model           TEXT,
		color           TEXT,
		body_type       TEXT,
		notes           TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS lists (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		type        TEXT NOT NULL,
		description TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_lists_name ON lists(name);`,
	`CREATE TABLE IF NOT EXISTS list_items (
		list_id     BIGINT REFERENCES lists(id),
		plate_id    BIGINT REFERENCES plates(id),
		note        TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (list_id, plate_id)
	);`,
	`CREATE TABLE IF NOT EXISTS recognition_events (
		id               BIGSERIAL PRIMARY KEY,
		capture_id       TEXT,
		source           TEXT NOT NULL,
		raw_plate        TEXT,
		normalized_plate TEXT,
		confidence       NUMERIC(5,2),
		verdict_kind     TEXT NOT NULL,
		reasons          JSONB,
		wanted           BOOLEAN NOT NULL DEFAULT false,
		vision_status    TEXT NOT NULL,
		vehicle_make     TEXT,
		vehicle_model    TEXT,
		vehicle_color    TEXT,
		raw_result       JSONB,
		event_time       TIMESTAMPTZ NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_recognition_events_plate ON recognition_events(normalized_plate);`,
	`CREATE INDEX IF NOT EXISTS idx_recognition_events_event_time ON recognition_events(event_time);`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM lists WHERE name = 'default_whitelist') THEN
			INSERT INTO lists (name, type, description) VALUES ('default_whitelist', 'WHITELIST', 'Default whitelist');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM lists WHERE name = 'default_blacklist') THEN
			INSERT INTO lists (name, type, description) VALUES ('default_blacklist', 'BLACKLIST', 'Wanted vehicles');
		END IF;
	END
	$$;`,
}

func runMigrations(gormDB *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := gormDB.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

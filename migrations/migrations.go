package migrations

import (
	"database/sql"
	"fmt"
)

var db *sql.DB

// Init sets the DB connection for migrations and seeds.
func Init(database *sql.DB) {
	db = database
}

// Migrate creates required tables if they do not exist. The store is a
// managed Supabase instance, so everything must be idempotent.
func Migrate() error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			full_name VARCHAR(150) NOT NULL DEFAULT '',
			role VARCHAR(30) NOT NULL DEFAULT 'patient',
			birth_date DATE,
			sex VARCHAR(10) NOT NULL DEFAULT '',
			height_cm NUMERIC(5,1) NOT NULL DEFAULT 0,
			weight_kg NUMERIC(5,1) NOT NULL DEFAULT 0,
			language VARCHAR(8) NOT NULL DEFAULT 'zh',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS diagnosis_sessions (
			id UUID PRIMARY KEY,
			profile_id UUID REFERENCES profiles(id) ON DELETE CASCADE,
			status VARCHAR(30) NOT NULL DEFAULT 'in_progress',
			step VARCHAR(30) NOT NULL DEFAULT 'basic_info',
			basic_info JSONB,
			inspection JSONB,
			listening JSONB,
			pulse JSONB,
			report JSONB,
			model_used VARCHAR(80) NOT NULL DEFAULT '',
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS inquiries (
			id SERIAL PRIMARY KEY,
			session_id UUID REFERENCES diagnosis_sessions(id) ON DELETE CASCADE,
			role VARCHAR(20) NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS admin_settings (
			key VARCHAR(100) PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS system_prompts (
			role_name VARCHAR(100) PRIMARY KEY,
			template TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_notifications (
			id SERIAL PRIMARY KEY,
			session_id UUID,
			kind VARCHAR(50) NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			scheduled_for TIMESTAMPTZ NOT NULL,
			sent BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// SeedDefaultPrompts inserts the built-in prompt templates when an admin
// has not customized them yet. Existing rows are never overwritten.
func SeedDefaultPrompts(defaults map[string]string) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	for role, tpl := range defaults {
		_, err := db.Exec(
			`INSERT INTO system_prompts (role_name, template) VALUES ($1, $2)
			 ON CONFLICT (role_name) DO NOTHING`,
			role, tpl,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

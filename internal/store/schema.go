package store

import "context"

// EnsureSchema creates all tables if they do not exist. Only the primary
// key syntax differs between the two drivers.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			id ` + pk + `,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			imported BOOLEAN NOT NULL DEFAULT FALSE,
			external_id TEXT UNIQUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS groups (
			id ` + pk + `,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contact_groups (
			contact_id BIGINT NOT NULL,
			group_id BIGINT NOT NULL,
			PRIMARY KEY (contact_id, group_id)
		)`,
		`CREATE TABLE IF NOT EXISTS templates (
			id ` + pk + `,
			name TEXT NOT NULL,
			body TEXT NOT NULL,
			favorite BOOLEAN NOT NULL DEFAULT FALSE,
			use_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id ` + pk + `,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			template_id BIGINT,
			scheduled_at TEXT,
			total_recipients INTEGER NOT NULL DEFAULT 0,
			sent_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0,
			errors TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_groups (
			campaign_id BIGINT NOT NULL,
			group_id BIGINT NOT NULL,
			PRIMARY KEY (campaign_id, group_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id ` + pk + `,
			campaign_id BIGINT NOT NULL,
			contact_id BIGINT NOT NULL,
			phone TEXT NOT NULL,
			content TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			sent_at TEXT,
			last_error TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_campaign ON messages (campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns (status)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

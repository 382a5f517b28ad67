package sqlite

import "fmt"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	query TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	max_results INTEGER NOT NULL DEFAULT 20,
	min_score INTEGER NOT NULL DEFAULT 0,
	skip_enrichment INTEGER NOT NULL DEFAULT 0,
	skip_outreach INTEGER NOT NULL DEFAULT 0,
	product_context TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT 'en',
	progress_json TEXT,
	checkpoint_json TEXT,
	summary_json TEXT,
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_jobs_user ON jobs(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	place_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	phone_digits TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	score REAL NOT NULL DEFAULT 0,
	tier TEXT NOT NULL DEFAULT '',
	rating_score REAL NOT NULL DEFAULT 0,
	review_score REAL NOT NULL DEFAULT 0,
	completeness_score REAL NOT NULL DEFAULT 0,
	social_score REAL NOT NULL DEFAULT 0,
	signals_score REAL NOT NULL DEFAULT 0,
	lead_json TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_job ON leads(job_id, created_at);
CREATE INDEX IF NOT EXISTS idx_leads_user_place ON leads(user_id, place_id);
CREATE INDEX IF NOT EXISTS idx_leads_user_phone ON leads(user_id, phone_digits);
`

// InitSchema creates the database schema if it doesn't exist
func (s *SQLiteDB) InitSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return s.runMigrations()
}

// runMigrations applies schema changes to databases created by older
// builds. Each step is additive and safe to re-run.
func (s *SQLiteDB) runMigrations() error {
	// Component score columns were added after the first release; old
	// databases only carry the total.
	for _, column := range []string{
		"rating_score", "review_score", "completeness_score", "social_score", "signals_score",
	} {
		if s.columnExists("leads", column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE leads ADD COLUMN %s REAL NOT NULL DEFAULT 0", column)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to add column %s: %w", column, err)
		}
		s.logger.Info().Str("column", column).Msg("Migrated leads table")
	}
	return nil
}

func (s *SQLiteDB) columnExists(table, column string) bool {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

package sqlite

import (
	"context"
	"database/sql"
)

// Migrate runs all database migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		// Builds table
		`CREATE TABLE IF NOT EXISTS builds (
			id TEXT PRIMARY KEY,
			repo TEXT NOT NULL,
			ref TEXT,
			commit_sha TEXT NOT NULL,
			workflow_name TEXT,
			runtime_version TEXT,
			state INTEGER NOT NULL DEFAULT 10,
			event_json TEXT,
			failure_message TEXT,
			failure_at DATETIME,
			started_at DATETIME,
			finished_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`,

		// Jobs table
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT NOT NULL,
			build_id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			state INTEGER NOT NULL DEFAULT 10,
			failure_message TEXT,
			failure_at DATETIME,
			started_at DATETIME,
			finished_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (build_id, id),
			FOREIGN KEY (build_id) REFERENCES builds(id) ON DELETE CASCADE
		)`,

		// Steps table
		`CREATE TABLE IF NOT EXISTS steps (
			idx INTEGER NOT NULL,
			build_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			args_json TEXT,
			state INTEGER NOT NULL DEFAULT 10,
			exit_code INTEGER NOT NULL DEFAULT 0,
			log_tail TEXT,
			failure_message TEXT,
			failure_at DATETIME,
			started_at DATETIME,
			finished_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (build_id, job_id, idx),
			FOREIGN KEY (build_id, job_id) REFERENCES jobs(build_id, id) ON DELETE CASCADE
		)`,

		// Step logs table
		`CREATE TABLE IF NOT EXISTS step_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			build_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			step_idx INTEGER NOT NULL,
			chunk TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (build_id, job_id) REFERENCES jobs(build_id, id) ON DELETE CASCADE
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_builds_repo ON builds(repo, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_builds_state ON builds(state)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_build ON jobs(build_id)`,
		`CREATE INDEX IF NOT EXISTS idx_step_logs_job ON step_logs(build_id, job_id, step_idx, id)`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

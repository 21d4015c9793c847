package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/gateci/internal/domain"
)

type logRepo struct {
	tx *sql.Tx
}

func (r *logRepo) Append(ctx context.Context, buildID, jobID string, stepIdx int, chunk string) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO step_logs (build_id, job_id, step_idx, chunk, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, buildID, jobID, stepIdx, chunk, time.Now().UTC())
	return err
}

func (r *logRepo) ListByJob(ctx context.Context, buildID, jobID string) ([]domain.LogChunk, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, build_id, job_id, step_idx, chunk, created_at
		FROM step_logs WHERE build_id = ? AND job_id = ?
		ORDER BY id
	`, buildID, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.LogChunk
	for rows.Next() {
		var c domain.LogChunk
		if err := rows.Scan(&c.ID, &c.BuildID, &c.JobID, &c.StepIdx, &c.Chunk, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

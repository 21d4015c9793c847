package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/storage"
)

type jobRepo struct {
	tx *sql.Tx
}

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) error {
	var failureMessage sql.NullString
	var failureAt sql.NullTime
	if job.Failure != nil {
		failureMessage = sql.NullString{String: job.Failure.Message, Valid: true}
		failureAt = sql.NullTime{Time: job.Failure.OccurredAt, Valid: true}
	}

	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO jobs (id, build_id, name, kind, state, failure_message, failure_at,
			started_at, finished_at, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.BuildID, job.Name, string(job.Kind), job.State,
		failureMessage, failureAt, nullTime(job.StartedAt), nullTime(job.FinishedAt),
		job.CreatedAt, job.UpdatedAt, job.Version)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrAlreadyExists
		}
		return err
	}

	for i := range job.Steps {
		if err := r.insertStep(ctx, job.BuildID, job.ID, &job.Steps[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *jobRepo) insertStep(ctx context.Context, buildID, jobID string, step *domain.Step) error {
	argsJSON, err := json.Marshal(step.Args)
	if err != nil {
		return err
	}

	var failureMessage sql.NullString
	var failureAt sql.NullTime
	if step.Failure != nil {
		failureMessage = sql.NullString{String: step.Failure.Message, Valid: true}
		failureAt = sql.NullTime{Time: step.Failure.OccurredAt, Valid: true}
	}

	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO steps (idx, build_id, job_id, kind, name, args_json, state, exit_code,
			log_tail, failure_message, failure_at, started_at, finished_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, step.Idx, buildID, jobID, string(step.Kind), step.Name, string(argsJSON),
		step.State, step.ExitCode, step.LogTail, failureMessage, failureAt,
		nullTime(step.StartedAt), nullTime(step.FinishedAt), step.CreatedAt, step.UpdatedAt)
	return err
}

func (r *jobRepo) Get(ctx context.Context, buildID, jobID string) (*domain.Job, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, build_id, name, kind, state, failure_message, failure_at,
			started_at, finished_at, created_at, updated_at, version
		FROM jobs WHERE build_id = ? AND id = ?
	`, buildID, jobID)
	return r.scanJobWithSteps(ctx, row)
}

func (r *jobRepo) GetByName(ctx context.Context, buildID, name string) (*domain.Job, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, build_id, name, kind, state, failure_message, failure_at,
			started_at, finished_at, created_at, updated_at, version
		FROM jobs WHERE build_id = ? AND name = ?
	`, buildID, name)
	return r.scanJobWithSteps(ctx, row)
}

func (r *jobRepo) scanJobWithSteps(ctx context.Context, row rowScanner) (*domain.Job, error) {
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	steps, err := r.loadSteps(ctx, job.BuildID, job.ID)
	if err != nil {
		return nil, err
	}
	job.Steps = steps
	return job, nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	job := &domain.Job{}
	var kind string
	var failureMessage sql.NullString
	var failureAt, startedAt, finishedAt sql.NullTime

	err := row.Scan(&job.ID, &job.BuildID, &job.Name, &kind, &job.State,
		&failureMessage, &failureAt, &startedAt, &finishedAt,
		&job.CreatedAt, &job.UpdatedAt, &job.Version)
	if err != nil {
		return nil, err
	}

	job.Kind = domain.GateKind(kind)
	if failureMessage.Valid && failureAt.Valid {
		job.Failure = &domain.Failure{
			Message:    failureMessage.String,
			OccurredAt: failureAt.Time,
		}
	}
	job.StartedAt = timePtr(startedAt)
	job.FinishedAt = timePtr(finishedAt)
	return job, nil
}

func (r *jobRepo) loadSteps(ctx context.Context, buildID, jobID string) ([]domain.Step, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT idx, kind, name, args_json, state, exit_code, log_tail,
			failure_message, failure_at, started_at, finished_at, created_at, updated_at
		FROM steps WHERE build_id = ? AND job_id = ?
		ORDER BY idx
	`, buildID, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		var step domain.Step
		var kind string
		var argsJSON, logTail, failureMessage sql.NullString
		var failureAt, startedAt, finishedAt sql.NullTime

		err := rows.Scan(&step.Idx, &kind, &step.Name, &argsJSON, &step.State,
			&step.ExitCode, &logTail, &failureMessage, &failureAt,
			&startedAt, &finishedAt, &step.CreatedAt, &step.UpdatedAt)
		if err != nil {
			return nil, err
		}

		step.Kind = domain.StepKind(kind)
		if argsJSON.Valid && argsJSON.String != "" && argsJSON.String != "null" {
			if err := json.Unmarshal([]byte(argsJSON.String), &step.Args); err != nil {
				return nil, err
			}
		}
		if step.Args == nil {
			step.Args = make(map[string]any)
		}
		step.LogTail = logTail.String
		if failureMessage.Valid && failureAt.Valid {
			step.Failure = &domain.Failure{
				Message:    failureMessage.String,
				OccurredAt: failureAt.Time,
			}
		}
		step.StartedAt = timePtr(startedAt)
		step.FinishedAt = timePtr(finishedAt)

		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (r *jobRepo) Update(ctx context.Context, job *domain.Job) error {
	var failureMessage sql.NullString
	var failureAt sql.NullTime
	if job.Failure != nil {
		failureMessage = sql.NullString{String: job.Failure.Message, Valid: true}
		failureAt = sql.NullTime{Time: job.Failure.OccurredAt, Valid: true}
	}

	result, err := r.tx.ExecContext(ctx, `
		UPDATE jobs
		SET state = ?, failure_message = ?, failure_at = ?, started_at = ?, finished_at = ?,
			updated_at = ?, version = version + 1
		WHERE build_id = ? AND id = ? AND version = ?
	`, job.State, failureMessage, failureAt, nullTime(job.StartedAt), nullTime(job.FinishedAt),
		job.UpdatedAt, job.BuildID, job.ID, job.Version)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrConcurrentModify
	}

	job.Version++
	return nil
}

func (r *jobRepo) ListByBuild(ctx context.Context, buildID string, opts storage.ListOptions) ([]*domain.Job, error) {
	query := `
		SELECT id, build_id, name, kind, state, failure_message, failure_at,
			started_at, finished_at, created_at, updated_at, version
		FROM jobs WHERE build_id = ?`
	args := []any{buildID}

	if len(opts.JobStates) > 0 {
		placeholders := make([]string, len(opts.JobStates))
		for i, state := range opts.JobStates {
			placeholders[i] = "?"
			args = append(args, state)
		}
		query += " AND state IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY name"

	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var jobs []*domain.Job
	func() {
		defer rows.Close()
		for rows.Next() {
			var job *domain.Job
			job, err = scanJob(rows)
			if err != nil {
				return
			}
			jobs = append(jobs, job)
		}
		err = rows.Err()
	}()
	if err != nil {
		return nil, err
	}

	// Steps loaded per job; a build has at most a handful of jobs.
	for _, job := range jobs {
		steps, err := r.loadSteps(ctx, buildID, job.ID)
		if err != nil {
			return nil, err
		}
		job.Steps = steps
	}
	return jobs, nil
}

func (r *jobRepo) UpdateStep(ctx context.Context, buildID, jobID string, step *domain.Step) error {
	argsJSON, err := json.Marshal(step.Args)
	if err != nil {
		return err
	}

	var failureMessage sql.NullString
	var failureAt sql.NullTime
	if step.Failure != nil {
		failureMessage = sql.NullString{String: step.Failure.Message, Valid: true}
		failureAt = sql.NullTime{Time: step.Failure.OccurredAt, Valid: true}
	}

	result, err := r.tx.ExecContext(ctx, `
		UPDATE steps
		SET args_json = ?, state = ?, exit_code = ?, log_tail = ?,
			failure_message = ?, failure_at = ?, started_at = ?, finished_at = ?, updated_at = ?
		WHERE build_id = ? AND job_id = ? AND idx = ?
	`, string(argsJSON), step.State, step.ExitCode, step.LogTail,
		failureMessage, failureAt, nullTime(step.StartedAt), nullTime(step.FinishedAt),
		step.UpdatedAt, buildID, jobID, step.Idx)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

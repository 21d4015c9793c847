package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/storage"
)

type buildRepo struct {
	tx *sql.Tx
}

func (r *buildRepo) Create(ctx context.Context, build *domain.Build) error {
	eventJSON, err := json.Marshal(build.Event)
	if err != nil {
		return err
	}

	var failureMessage sql.NullString
	var failureAt sql.NullTime
	if build.Failure != nil {
		failureMessage = sql.NullString{String: build.Failure.Message, Valid: true}
		failureAt = sql.NullTime{Time: build.Failure.OccurredAt, Valid: true}
	}

	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO builds (id, repo, ref, commit_sha, workflow_name, runtime_version, state,
			event_json, failure_message, failure_at, started_at, finished_at,
			created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, build.ID, build.Repo, build.Ref, build.CommitSHA, build.WorkflowName, build.RuntimeVersion,
		build.State, string(eventJSON), failureMessage, failureAt,
		nullTime(build.StartedAt), nullTime(build.FinishedAt),
		build.CreatedAt, build.UpdatedAt, build.Version)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *buildRepo) Get(ctx context.Context, id string) (*domain.Build, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, repo, ref, commit_sha, workflow_name, runtime_version, state,
			event_json, failure_message, failure_at, started_at, finished_at,
			created_at, updated_at, version
		FROM builds WHERE id = ?
	`, id)

	build, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return build, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuild(row rowScanner) (*domain.Build, error) {
	build := &domain.Build{}
	var eventJSON sql.NullString
	var failureMessage sql.NullString
	var failureAt, startedAt, finishedAt sql.NullTime

	err := row.Scan(&build.ID, &build.Repo, &build.Ref, &build.CommitSHA,
		&build.WorkflowName, &build.RuntimeVersion, &build.State,
		&eventJSON, &failureMessage, &failureAt, &startedAt, &finishedAt,
		&build.CreatedAt, &build.UpdatedAt, &build.Version)
	if err != nil {
		return nil, err
	}

	if eventJSON.Valid && eventJSON.String != "" && eventJSON.String != "null" {
		if err := json.Unmarshal([]byte(eventJSON.String), &build.Event); err != nil {
			return nil, err
		}
	}
	if failureMessage.Valid && failureAt.Valid {
		build.Failure = &domain.Failure{
			Message:    failureMessage.String,
			OccurredAt: failureAt.Time,
		}
	}
	if startedAt.Valid {
		build.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		build.FinishedAt = &finishedAt.Time
	}
	return build, nil
}

func (r *buildRepo) Update(ctx context.Context, build *domain.Build) error {
	eventJSON, err := json.Marshal(build.Event)
	if err != nil {
		return err
	}

	var failureMessage sql.NullString
	var failureAt sql.NullTime
	if build.Failure != nil {
		failureMessage = sql.NullString{String: build.Failure.Message, Valid: true}
		failureAt = sql.NullTime{Time: build.Failure.OccurredAt, Valid: true}
	}

	result, err := r.tx.ExecContext(ctx, `
		UPDATE builds
		SET state = ?, event_json = ?, failure_message = ?, failure_at = ?,
			started_at = ?, finished_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, build.State, string(eventJSON), failureMessage, failureAt,
		nullTime(build.StartedAt), nullTime(build.FinishedAt), build.UpdatedAt,
		build.ID, build.Version)
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

	build.Version++
	return nil
}

func (r *buildRepo) List(ctx context.Context, opts storage.ListOptions) ([]*domain.Build, error) {
	query := `
		SELECT id, repo, ref, commit_sha, workflow_name, runtime_version, state,
			event_json, failure_message, failure_at, started_at, finished_at,
			created_at, updated_at, version
		FROM builds WHERE 1=1`
	var args []any

	if opts.Repo != "" {
		query += " AND repo = ?"
		args = append(args, opts.Repo)
	}
	if len(opts.BuildStates) > 0 {
		placeholders := make([]string, len(opts.BuildStates))
		for i, state := range opts.BuildStates {
			placeholders[i] = "?"
			args = append(args, state)
		}
		query += " AND state IN (" + strings.Join(placeholders, ",") + ")"
	}

	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []*domain.Build
	for rows.Next() {
		build, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, build)
	}
	return builds, rows.Err()
}

func (r *buildRepo) Delete(ctx context.Context, id string) error {
	result, err := r.tx.ExecContext(ctx, `DELETE FROM builds WHERE id = ?`, id)
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

// internal/database/repositories.go
package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	custom_errors "spygit/internal/errors"
	"spygit/internal/model"
)

const repositoryColumns = `id, student_id, repo_name, repo_url, github_repo_id, default_branch,
       assignment_id, is_active, webhook_id, last_synced_at, created_at, updated_at`

func scanRepository(row pgx.Row) (model.Repository, error) {
	var r model.Repository
	err := row.Scan(
		&r.ID, &r.StudentID, &r.RepoName, &r.RepoURL, &r.GithubRepoID, &r.DefaultBranch,
		&r.AssignmentID, &r.IsActive, &r.WebhookID, &r.LastSyncedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

type UpsertRepositoryParams struct {
	StudentID     string
	RepoName      string
	RepoURL       string
	GithubRepoID  int64
	DefaultBranch string
	LastSyncedAt  time.Time
}

const upsertRepository = `
INSERT INTO repositories (student_id, repo_name, repo_url, github_repo_id, default_branch, last_synced_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (github_repo_id) DO UPDATE
SET student_id = EXCLUDED.student_id,
    repo_name = EXCLUDED.repo_name,
    repo_url = EXCLUDED.repo_url,
    default_branch = EXCLUDED.default_branch,
    last_synced_at = EXCLUDED.last_synced_at,
    updated_at = now()
RETURNING ` + repositoryColumns

// UpsertRepository inserts or refreshes a repository keyed by its GitHub id.
func (q *Queries) UpsertRepository(ctx context.Context, arg UpsertRepositoryParams) (model.Repository, error) {
	const op = "internal.database.UpsertRepository"

	r, err := scanRepository(q.db.QueryRow(ctx, upsertRepository,
		arg.StudentID, arg.RepoName, arg.RepoURL, arg.GithubRepoID, arg.DefaultBranch, arg.LastSyncedAt,
	))
	if err != nil {
		return model.Repository{}, fmt.Errorf("%s: failed to execute upsert: %w", op, err)
	}
	return r, nil
}

const getRepository = `SELECT ` + repositoryColumns + ` FROM repositories WHERE id = $1`

func (q *Queries) GetRepository(ctx context.Context, id string) (model.Repository, error) {
	const op = "internal.database.GetRepository"

	r, err := scanRepository(q.db.QueryRow(ctx, getRepository, id))
	if err != nil {
		if isNoRows(err) {
			return model.Repository{}, fmt.Errorf("%s: %w: repository with id '%s'", op, custom_errors.ErrNotFound, id)
		}
		return model.Repository{}, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	return r, nil
}

const getRepositoryByGithubID = `SELECT ` + repositoryColumns + ` FROM repositories WHERE github_repo_id = $1`

func (q *Queries) GetRepositoryByGithubID(ctx context.Context, githubRepoID int64) (model.Repository, error) {
	const op = "internal.database.GetRepositoryByGithubID"

	r, err := scanRepository(q.db.QueryRow(ctx, getRepositoryByGithubID, githubRepoID))
	if err != nil {
		if isNoRows(err) {
			return model.Repository{}, fmt.Errorf("%s: %w: repository with github id %d", op, custom_errors.ErrNotFound, githubRepoID)
		}
		return model.Repository{}, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	return r, nil
}

const getRepositoryByStudentAndName = `
SELECT ` + repositoryColumns + `
FROM repositories
WHERE student_id = $1 AND repo_name = $2
ORDER BY created_at DESC
LIMIT 1`

func (q *Queries) GetRepositoryByStudentAndName(ctx context.Context, studentID, repoName string) (model.Repository, error) {
	const op = "internal.database.GetRepositoryByStudentAndName"

	r, err := scanRepository(q.db.QueryRow(ctx, getRepositoryByStudentAndName, studentID, repoName))
	if err != nil {
		if isNoRows(err) {
			return model.Repository{}, fmt.Errorf("%s: %w: repository '%s'", op, custom_errors.ErrNotFound, repoName)
		}
		return model.Repository{}, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	return r, nil
}

const touchRepositorySync = `UPDATE repositories SET last_synced_at = $2, updated_at = now() WHERE id = $1`

func (q *Queries) TouchRepositorySync(ctx context.Context, id string, at time.Time) error {
	const op = "internal.database.TouchRepositorySync"

	if _, err := q.db.Exec(ctx, touchRepositorySync, id, at); err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}
	return nil
}

// ListRepositoriesByStudents returns the repositories of the given students, newest first.
func (q *Queries) ListRepositoriesByStudents(ctx context.Context, studentIDs []string) ([]model.Repository, error) {
	const op = "internal.database.ListRepositoriesByStudents"

	if len(studentIDs) == 0 {
		return []model.Repository{}, nil
	}

	query, args, err := q.sq.Select(repositoryColumns).
		From("repositories").
		Where(sq.Eq{"student_id": studentIDs}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()

	repos := []model.Repository{}
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		repos = append(repos, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return repos, nil
}

// internal/database/activities.go
package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"spygit/internal/model"
)

type CommitActivityParams struct {
	StudentID     string
	RepositoryID  *string
	CommitSHA     string
	CommitMessage string
	Additions     *int
	Deletions     *int
	FilesChanged  *int
	Metadata      map[string]any
	OccurredAt    time.Time
}

func (p CommitActivityParams) args() []any {
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return []any{
		p.StudentID, p.RepositoryID, p.CommitSHA, p.CommitMessage,
		p.Additions, p.Deletions, p.FilesChanged, metadata, p.OccurredAt,
	}
}

const upsertCommitActivity = `
INSERT INTO activities (student_id, repository_id, activity_type, commit_sha, commit_message,
                        additions, deletions, files_changed, metadata, occurred_at)
VALUES ($1, $2, 'commit', $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (commit_sha) DO UPDATE
SET repository_id = EXCLUDED.repository_id,
    commit_message = EXCLUDED.commit_message,
    additions = COALESCE(EXCLUDED.additions, activities.additions),
    deletions = COALESCE(EXCLUDED.deletions, activities.deletions),
    files_changed = COALESCE(EXCLUDED.files_changed, activities.files_changed),
    metadata = EXCLUDED.metadata,
    occurred_at = EXCLUDED.occurred_at`

// UpsertCommitActivity records a commit, refreshing the existing row when the SHA is known.
func (q *Queries) UpsertCommitActivity(ctx context.Context, arg CommitActivityParams) error {
	const op = "internal.database.UpsertCommitActivity"

	if _, err := q.db.Exec(ctx, upsertCommitActivity, arg.args()...); err != nil {
		return fmt.Errorf("%s: failed to execute upsert: %w", op, err)
	}
	return nil
}

const insertCommitActivity = `
INSERT INTO activities (student_id, repository_id, activity_type, commit_sha, commit_message,
                        additions, deletions, files_changed, metadata, occurred_at)
VALUES ($1, $2, 'commit', $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (commit_sha) DO NOTHING`

// InsertCommitActivity records a commit unless its SHA is already stored.
// It reports whether a row was written.
func (q *Queries) InsertCommitActivity(ctx context.Context, arg CommitActivityParams) (bool, error) {
	const op = "internal.database.InsertCommitActivity"

	tag, err := q.db.Exec(ctx, insertCommitActivity, arg.args()...)
	if err != nil {
		return false, fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}
	return tag.RowsAffected() > 0, nil
}

type EventActivityParams struct {
	StudentID     string
	RepositoryID  *string
	ActivityType  model.ActivityType
	GithubEventID string
	Metadata      map[string]any
	OccurredAt    time.Time
}

const upsertEventActivity = `
INSERT INTO activities (student_id, repository_id, activity_type, github_event_id, metadata, occurred_at)
VALUES ($1, $2, $3::activity_type, $4, $5, $6)
ON CONFLICT (github_event_id) DO UPDATE
SET metadata = EXCLUDED.metadata,
    occurred_at = EXCLUDED.occurred_at`

// UpsertEventActivity records a non-commit event keyed by its GitHub event id.
func (q *Queries) UpsertEventActivity(ctx context.Context, arg EventActivityParams) error {
	const op = "internal.database.UpsertEventActivity"

	metadata := arg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err := q.db.Exec(ctx, upsertEventActivity,
		arg.StudentID, arg.RepositoryID, string(arg.ActivityType), arg.GithubEventID, metadata, arg.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("%s: failed to execute upsert: %w", op, err)
	}
	return nil
}

// ListActivities returns activities of the given students that occurred at or after since,
// newest first.
func (q *Queries) ListActivities(ctx context.Context, studentIDs []string, since time.Time) ([]model.Activity, error) {
	const op = "internal.database.ListActivities"

	if len(studentIDs) == 0 {
		return []model.Activity{}, nil
	}

	query, args, err := q.sq.Select(
		"id", "student_id", "repository_id", "activity_type::text", "commit_sha", "commit_message",
		"github_event_id", "additions", "deletions", "files_changed", "metadata", "occurred_at", "created_at",
	).
		From("activities").
		Where(sq.Eq{"student_id": studentIDs}).
		Where(sq.GtOrEq{"occurred_at": since}).
		OrderBy("occurred_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()

	activities := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(
			&a.ID, &a.StudentID, &a.RepositoryID, &a.ActivityType, &a.CommitSHA, &a.CommitMessage,
			&a.GithubEventID, &a.Additions, &a.Deletions, &a.FilesChanged, &a.Metadata, &a.OccurredAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return activities, nil
}

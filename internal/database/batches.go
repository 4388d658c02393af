// internal/database/batches.go
package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"spygit/internal/model"
)

const listActiveBatchesByTeacher = `
SELECT id, teacher_id, name, description, start_date, end_date, is_active, created_at, updated_at
FROM batches
WHERE teacher_id = $1 AND is_active
ORDER BY created_at DESC`

func (q *Queries) ListActiveBatchesByTeacher(ctx context.Context, teacherID string) ([]model.Batch, error) {
	const op = "internal.database.ListActiveBatchesByTeacher"

	rows, err := q.db.Query(ctx, listActiveBatchesByTeacher, teacherID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()

	batches := []model.Batch{}
	for rows.Next() {
		var b model.Batch
		if err := rows.Scan(
			&b.ID, &b.TeacherID, &b.Name, &b.Description, &b.StartDate, &b.EndDate, &b.IsActive, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return batches, nil
}

// BatchMember is a student enrolled in a batch.
type BatchMember struct {
	BatchID string
	Student model.User
}

// ListBatchMembers returns the enrolled students of the given batches in enrolment order.
func (q *Queries) ListBatchMembers(ctx context.Context, batchIDs []string) ([]BatchMember, error) {
	const op = "internal.database.ListBatchMembers"

	if len(batchIDs) == 0 {
		return []BatchMember{}, nil
	}

	query, args, err := q.sq.Select(
		"bs.batch_id", "u.id", "u.email", "u.full_name", "u.role::text", "u.github_username",
		"u.github_avatar_url", "u.github_repos_count", "u.last_github_sync", "u.created_at", "u.updated_at",
	).
		From("batch_students bs").
		Join("users u ON u.id = bs.student_id").
		Where(sq.Eq{"bs.batch_id": batchIDs}).
		OrderBy("bs.joined_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()

	members := []BatchMember{}
	for rows.Next() {
		var m BatchMember
		u := &m.Student
		if err := rows.Scan(
			&m.BatchID, &u.ID, &u.Email, &u.FullName, &u.Role, &u.GithubUsername,
			&u.GithubAvatarURL, &u.GithubReposCount, &u.LastGithubSync, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return members, nil
}

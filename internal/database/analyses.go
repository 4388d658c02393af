// internal/database/analyses.go
package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	custom_errors "spygit/internal/errors"
	"spygit/internal/model"
)

type CreateAnalysisParams struct {
	RepositoryID string
	AssignmentID *string
	CommitSHA    string
	Status       model.AnalysisStatus
}

const createAnalysis = `
INSERT INTO analyses (repository_id, assignment_id, commit_sha, status)
VALUES ($1, $2, $3, $4::analysis_status)
RETURNING id`

// CreateAnalysis inserts an analysis row and returns its id.
func (q *Queries) CreateAnalysis(ctx context.Context, arg CreateAnalysisParams) (string, error) {
	const op = "internal.database.CreateAnalysis"

	var id string
	err := q.db.QueryRow(ctx, createAnalysis, arg.RepositoryID, arg.AssignmentID, arg.CommitSHA, string(arg.Status)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}
	return id, nil
}

const completeAnalysis = `
UPDATE analyses
SET status = 'completed',
    overall_grade = $2,
    code_quality_score = $3,
    requirements_met = $4,
    topic_coverage = $5,
    feedback = $6,
    suggestions = $7,
    analyzed_at = $8,
    error_message = NULL
WHERE id = $1 AND status IN ('pending', 'processing')`

// CompleteAnalysis stores a graded result. Analyses that already reached a terminal
// status are left untouched and reported as not found.
func (q *Queries) CompleteAnalysis(ctx context.Context, id string, res model.AnalysisResult) error {
	const op = "internal.database.CompleteAnalysis"

	verdicts := res.RequirementsMet
	if verdicts == nil {
		verdicts = []model.RequirementVerdict{}
	}
	coverage := res.TopicCoverage
	if coverage == nil {
		coverage = map[string]float64{}
	}
	suggestions := res.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	tag, err := q.db.Exec(ctx, completeAnalysis,
		id, res.OverallGrade, res.CodeQualityScore, verdicts, coverage, res.Feedback, suggestions, res.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w: open analysis with id '%s'", op, custom_errors.ErrNotFound, id)
	}
	return nil
}

const failAnalysis = `
UPDATE analyses
SET status = 'failed',
    error_message = $2
WHERE id = $1 AND status IN ('pending', 'processing')`

func (q *Queries) FailAnalysis(ctx context.Context, id, message string) error {
	const op = "internal.database.FailAnalysis"

	tag, err := q.db.Exec(ctx, failAnalysis, id, message)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w: open analysis with id '%s'", op, custom_errors.ErrNotFound, id)
	}
	return nil
}

// ListAnalysesByRepositories returns the analyses of the given repositories, newest first,
// with the title of the graded assignment when there is one.
func (q *Queries) ListAnalysesByRepositories(ctx context.Context, repositoryIDs []string) ([]model.Analysis, error) {
	const op = "internal.database.ListAnalysesByRepositories"

	if len(repositoryIDs) == 0 {
		return []model.Analysis{}, nil
	}

	query, args, err := q.sq.Select(
		"an.id", "an.repository_id", "an.assignment_id", "an.commit_sha", "an.status::text",
		"an.overall_grade", "an.code_quality_score", "an.requirements_met", "an.topic_coverage",
		"an.feedback", "an.suggestions", "an.error_message", "an.analyzed_at", "an.created_at", "asg.title",
	).
		From("analyses an").
		LeftJoin("assignments asg ON asg.id = an.assignment_id").
		Where(sq.Eq{"an.repository_id": repositoryIDs}).
		OrderBy("an.created_at DESC", "an.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()

	analyses := []model.Analysis{}
	for rows.Next() {
		var a model.Analysis
		if err := rows.Scan(
			&a.ID, &a.RepositoryID, &a.AssignmentID, &a.CommitSHA, &a.Status,
			&a.OverallGrade, &a.CodeQualityScore, &a.RequirementsMet, &a.TopicCoverage,
			&a.Feedback, &a.Suggestions, &a.ErrorMessage, &a.AnalyzedAt, &a.CreatedAt, &a.AssignmentTitle,
		); err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return analyses, nil
}

const getAssignment = `
SELECT id, batch_id, created_by, title, description, due_date, requirements, rubric,
       status::text, topics, created_at, updated_at
FROM assignments
WHERE id = $1`

func (q *Queries) GetAssignment(ctx context.Context, id string) (model.Assignment, error) {
	const op = "internal.database.GetAssignment"

	var a model.Assignment
	err := q.db.QueryRow(ctx, getAssignment, id).Scan(
		&a.ID, &a.BatchID, &a.CreatedBy, &a.Title, &a.Description, &a.DueDate, &a.Requirements, &a.Rubric,
		&a.Status, &a.Topics, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return model.Assignment{}, fmt.Errorf("%s: %w: assignment with id '%s'", op, custom_errors.ErrNotFound, id)
		}
		return model.Assignment{}, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	return a, nil
}

// internal/analysis/service.go

// Package analysis grades a commit against its assignment with a chat completion model.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spygit/internal/database"
	custom_errors "spygit/internal/errors"
	"spygit/internal/metrics"
	"spygit/internal/model"
	"spygit/pkg/logger/sl"
)

type Store interface {
	GetRepository(ctx context.Context, id string) (model.Repository, error)
	GetAssignment(ctx context.Context, id string) (model.Assignment, error)
	CreateAnalysis(ctx context.Context, arg database.CreateAnalysisParams) (string, error)
	CompleteAnalysis(ctx context.Context, id string, res model.AnalysisResult) error
	FailAnalysis(ctx context.Context, id, message string) error
	CreateNotification(ctx context.Context, arg database.CreateNotificationParams) error
}

type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Request struct {
	RepositoryID string
	CommitSHA    string
	AssignmentID *string
}

type Result struct {
	AnalysisID   string  `json:"analysisId"`
	OverallGrade float64 `json:"overallGrade"`
	Feedback     string  `json:"feedback"`
}

type Service struct {
	store      Store
	ai         Completer
	markFailed bool
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates the analysis service. With markFailed set, analyses whose grading
// fails are moved to the failed status instead of staying in processing.
func NewService(store Store, ai Completer, markFailed bool, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		ai:         ai,
		markFailed: markFailed,
		logger:     logger.With("component", "analysis"),
		now:        time.Now,
	}
}

// Analyze records a new analysis of a commit, grades it and stores the result.
func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	logger := s.logger.With("repository_id", req.RepositoryID, "commit_sha", req.CommitSHA)
	logger.Info("Analyzing code")

	repo, err := s.store.GetRepository(ctx, req.RepositoryID)
	if err != nil {
		return Result{}, err
	}

	requirements, err := s.requirements(ctx, req.AssignmentID)
	if err != nil {
		return Result{}, err
	}

	analysisID, err := s.store.CreateAnalysis(ctx, database.CreateAnalysisParams{
		RepositoryID: req.RepositoryID,
		AssignmentID: req.AssignmentID,
		CommitSHA:    req.CommitSHA,
		Status:       model.AnalysisProcessing,
	})
	if err != nil {
		return Result{}, err
	}
	logger = logger.With("analysis_id", analysisID)

	res, err := s.grade(ctx, repo.RepoURL, req.CommitSHA, requirements)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.fail(ctx, logger, analysisID, err)
		return Result{}, err
	}

	if err := s.store.CompleteAnalysis(ctx, analysisID, res); err != nil {
		metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return Result{}, err
	}
	metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logger.Info("Analysis completed", "overall_grade", res.OverallGrade)

	s.notify(ctx, logger, repo, analysisID, req.CommitSHA, res.OverallGrade)

	return Result{
		AnalysisID:   analysisID,
		OverallGrade: res.OverallGrade,
		Feedback:     res.Feedback,
	}, nil
}

// requirements loads the assignment's requirements. A missing assignment grades as if
// none were given.
func (s *Service) requirements(ctx context.Context, assignmentID *string) ([]model.Requirement, error) {
	if assignmentID == nil || *assignmentID == "" {
		return nil, nil
	}

	assignment, err := s.store.GetAssignment(ctx, *assignmentID)
	if errors.Is(err, custom_errors.ErrNotFound) {
		s.logger.Warn("Assignment not found, grading without requirements", "assignment_id", *assignmentID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return assignment.Requirements, nil
}

func (s *Service) grade(ctx context.Context, repoURL, commitSHA string, requirements []model.Requirement) (model.AnalysisResult, error) {
	content, err := s.ai.Complete(ctx, systemPrompt, buildPrompt(repoURL, commitSHA, requirements))
	if err != nil {
		return model.AnalysisResult{}, err
	}

	var r report
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &r); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to parse AI analysis: %w", err)
	}

	return model.AnalysisResult{
		OverallGrade:     overallGrade(requirements, r),
		CodeQualityScore: r.CodeQualityScore,
		RequirementsMet:  r.RequirementsMet,
		TopicCoverage:    r.TopicCoverage,
		Feedback:         r.Feedback,
		Suggestions:      r.Suggestions,
		AnalyzedAt:       s.now(),
	}, nil
}

func (s *Service) fail(ctx context.Context, logger *slog.Logger, analysisID string, cause error) {
	if !s.markFailed {
		logger.Error("Analysis failed, leaving it in processing", sl.Err(cause))
		return
	}

	logger.Error("Analysis failed", sl.Err(cause))
	if err := s.store.FailAnalysis(context.WithoutCancel(ctx), analysisID, cause.Error()); err != nil {
		logger.Error("Failed to mark analysis as failed", sl.Err(err))
	}
}

func (s *Service) notify(ctx context.Context, logger *slog.Logger, repo model.Repository, analysisID, commitSHA string, grade float64) {
	err := s.store.CreateNotification(ctx, database.CreateNotificationParams{
		UserID:  repo.StudentID,
		Type:    "analysis_completed",
		Title:   "Code analysis completed",
		Message: fmt.Sprintf("Commit %s in %s was graded %.0f%%.", shortSHA(commitSHA), repo.RepoName, grade),
		Metadata: map[string]any{
			"analysis_id":   analysisID,
			"repository_id": repo.ID,
			"commit_sha":    commitSHA,
			"overall_grade": grade,
		},
	})
	if err != nil {
		logger.Warn("Failed to create notification", sl.Err(err))
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

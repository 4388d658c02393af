// internal/database/querier.go
package database

import (
	"context"
	"time"

	"spygit/internal/model"
)

type Querier interface {
	CompleteAnalysis(ctx context.Context, id string, res model.AnalysisResult) error
	CreateAnalysis(ctx context.Context, arg CreateAnalysisParams) (string, error)
	CreateNotification(ctx context.Context, arg CreateNotificationParams) error
	FailAnalysis(ctx context.Context, id, message string) error
	GetAssignment(ctx context.Context, id string) (model.Assignment, error)
	GetRepository(ctx context.Context, id string) (model.Repository, error)
	GetRepositoryByGithubID(ctx context.Context, githubRepoID int64) (model.Repository, error)
	GetRepositoryByStudentAndName(ctx context.Context, studentID, repoName string) (model.Repository, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	InsertCommitActivity(ctx context.Context, arg CommitActivityParams) (bool, error)
	ListActiveBatchesByTeacher(ctx context.Context, teacherID string) ([]model.Batch, error)
	ListActivities(ctx context.Context, studentIDs []string, since time.Time) ([]model.Activity, error)
	ListAnalysesByRepositories(ctx context.Context, repositoryIDs []string) ([]model.Analysis, error)
	ListBatchMembers(ctx context.Context, batchIDs []string) ([]BatchMember, error)
	ListRepositoriesByStudents(ctx context.Context, studentIDs []string) ([]model.Repository, error)
	ListUsersWithGithubToken(ctx context.Context) ([]string, error)
	ReleaseSavepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	Savepoint(ctx context.Context, name string) error
	TouchRepositorySync(ctx context.Context, id string, at time.Time) error
	UpdateUserGithubProfile(ctx context.Context, arg UpdateUserGithubProfileParams) error
	UpsertCommitActivity(ctx context.Context, arg CommitActivityParams) error
	UpsertEventActivity(ctx context.Context, arg EventActivityParams) error
	UpsertRepository(ctx context.Context, arg UpsertRepositoryParams) (model.Repository, error)
}

var _ Querier = (*Queries)(nil)

// internal/dashboard/aggregator_test.go
package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"spygit/internal/database"
	custom_errors "spygit/internal/errors"
	"spygit/internal/model"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetUser(ctx context.Context, id string) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}
func (m *MockStore) ListActivities(ctx context.Context, studentIDs []string, since time.Time) ([]model.Activity, error) {
	args := m.Called(ctx, studentIDs, since)
	return args.Get(0).([]model.Activity), args.Error(1)
}
func (m *MockStore) ListRepositoriesByStudents(ctx context.Context, studentIDs []string) ([]model.Repository, error) {
	args := m.Called(ctx, studentIDs)
	return args.Get(0).([]model.Repository), args.Error(1)
}
func (m *MockStore) ListAnalysesByRepositories(ctx context.Context, repositoryIDs []string) ([]model.Analysis, error) {
	args := m.Called(ctx, repositoryIDs)
	return args.Get(0).([]model.Analysis), args.Error(1)
}
func (m *MockStore) ListActiveBatchesByTeacher(ctx context.Context, teacherID string) ([]model.Batch, error) {
	args := m.Called(ctx, teacherID)
	return args.Get(0).([]model.Batch), args.Error(1)
}
func (m *MockStore) ListBatchMembers(ctx context.Context, batchIDs []string) ([]database.BatchMember, error) {
	args := m.Called(ctx, batchIDs)
	return args.Get(0).([]database.BatchMember), args.Error(1)
}

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestAggregator(store Store) *Aggregator {
	a := NewAggregator(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.now = func() time.Time { return now }
	return a
}

func ptr[T any](v T) *T { return &v }

func TestAggregator_Student(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)

	activities := []model.Activity{
		{ID: "a1", StudentID: "s1", ActivityType: model.ActivityCommit, OccurredAt: now.Add(-1 * time.Hour)},
		{ID: "a2", StudentID: "s1", ActivityType: model.ActivityCommit, OccurredAt: now.Add(-2 * time.Hour)},
		{ID: "a3", StudentID: "s1", ActivityType: model.ActivityPullRequest, OccurredAt: now.Add(-26 * time.Hour)},
		{ID: "a4", StudentID: "s1", ActivityType: model.ActivityCommit, OccurredAt: now.Add(-5 * 24 * time.Hour)},
	}
	repos := []model.Repository{
		{ID: "r2", StudentID: "s1", RepoName: "newer"},
		{ID: "r1", StudentID: "s1", RepoName: "older"},
	}
	analyses := []model.Analysis{
		{ID: "an1", RepositoryID: "r2", OverallGrade: ptr(90.0), AssignmentTitle: ptr("REST API")},
		{ID: "an2", RepositoryID: "r2", OverallGrade: ptr(70.0)},
		{ID: "an3", RepositoryID: "r1", OverallGrade: ptr(60.0)},
		{ID: "an4", RepositoryID: "r1", OverallGrade: ptr(50.0)},
	}

	store.On("ListActivities", ctx, []string{"s1"}, now.Add(-30*24*time.Hour)).Return(activities, nil).Once()
	store.On("ListRepositoriesByStudents", ctx, []string{"s1"}).Return(repos, nil).Once()
	store.On("ListAnalysesByRepositories", ctx, []string{"r2", "r1"}).Return(analyses, nil).Once()

	view, err := newTestAggregator(store).Student(ctx, "s1")

	require.NoError(t, err)
	assert.Len(t, view.Activities, 4)
	require.Len(t, view.Repositories, 2)
	assert.Len(t, view.Repositories[0].Analyses, 2)
	assert.Equal(t, "REST API", view.Repositories[0].Analyses[0].Assignments.Title)
	assert.Nil(t, view.Repositories[0].Analyses[1].Assignments)

	assert.Equal(t, 3, view.Stats.TotalCommits)
	assert.Equal(t, 2, view.Stats.ActiveRepositories)
	assert.Equal(t, 3, view.Stats.CurrentStreak)
	require.Len(t, view.Stats.RecentAnalyses, 3)
	assert.Equal(t, "an1", view.Stats.RecentAnalyses[0].ID)
	assert.Equal(t, "an3", view.Stats.RecentAnalyses[2].ID)
	store.AssertExpectations(t)
}

func TestAggregator_StudentEmpty(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("ListActivities", ctx, []string{"s1"}, mock.Anything).Return([]model.Activity{}, nil).Once()
	store.On("ListRepositoriesByStudents", ctx, []string{"s1"}).Return([]model.Repository{}, nil).Once()
	store.On("ListAnalysesByRepositories", ctx, []string{}).Return([]model.Analysis{}, nil).Once()

	view, err := newTestAggregator(store).Student(ctx, "s1")
	require.NoError(t, err)

	body, err := json.Marshal(view)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"activities": [],
		"repositories": [],
		"stats": {"totalCommits": 0, "activeRepositories": 0, "currentStreak": 0, "recentAnalyses": []}
	}`, string(body))
}

func TestAggregator_Teacher(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)

	batches := []model.Batch{{ID: "b1", TeacherID: "t1", Name: "Cohort 7", IsActive: true}}
	members := []database.BatchMember{
		{BatchID: "b1", Student: model.User{ID: "s1", FullName: ptr("Ada")}},
		{BatchID: "b1", Student: model.User{ID: "s2", FullName: ptr("Linus")}},
	}
	repos := []model.Repository{
		{ID: "r1", StudentID: "s1", RepoName: "newest"},
		{ID: "r0", StudentID: "s1", RepoName: "older"},
		{ID: "r2", StudentID: "s2", RepoName: "only"},
	}
	analyses := []model.Analysis{
		{ID: "an1", RepositoryID: "r1", OverallGrade: ptr(80.0)},
		{ID: "an0", RepositoryID: "r1", OverallGrade: ptr(10.0)},
		{ID: "an9", RepositoryID: "r0", OverallGrade: ptr(100.0)},
	}
	activities := []model.Activity{
		{StudentID: "s1", ActivityType: model.ActivityCommit, OccurredAt: now.Add(-24 * time.Hour)},
		{StudentID: "s2", ActivityType: model.ActivityCommit, OccurredAt: now.Add(-10 * 24 * time.Hour)},
	}

	store.On("GetUser", ctx, "t1").Return(model.User{ID: "t1", Role: model.RoleTeacher}, nil).Once()
	store.On("ListActiveBatchesByTeacher", ctx, "t1").Return(batches, nil).Once()
	store.On("ListBatchMembers", ctx, []string{"b1"}).Return(members, nil).Once()
	store.On("ListRepositoriesByStudents", ctx, []string{"s1", "s2"}).Return(repos, nil).Once()
	store.On("ListAnalysesByRepositories", ctx, []string{"r1", "r0", "r2"}).Return(analyses, nil).Once()
	store.On("ListActivities", ctx, []string{"s1", "s2"}, mock.Anything).Return(activities, nil).Once()

	out, err := newTestAggregator(store).Build(ctx, "t1", TypeTeacher)
	require.NoError(t, err)

	view, ok := out.(TeacherView)
	require.True(t, ok)
	require.Len(t, view.Batches, 1)
	assert.Len(t, view.Batches[0].BatchStudents, 2)
	assert.Equal(t, "Ada", *view.Batches[0].BatchStudents[0].Student.FullName)
	assert.Empty(t, view.Alerts)

	require.Len(t, view.Metrics, 1)
	assert.Equal(t, BatchMetrics{
		BatchID:        "b1",
		BatchName:      "Cohort 7",
		TotalStudents:  2,
		ActiveStudents: 1,
		AverageGrade:   40,
		NeedsAttention: 1,
	}, view.Metrics[0])
	store.AssertExpectations(t)
}

func TestAggregator_Build(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects teacher dashboards for students", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetUser", ctx, "s1").Return(model.User{ID: "s1", Role: model.RoleStudent}, nil).Once()

		_, err := newTestAggregator(store).Build(ctx, "s1", TypeTeacher)

		assert.ErrorIs(t, err, custom_errors.ErrInvalidDashboardType)
		store.AssertNotCalled(t, "ListActiveBatchesByTeacher", mock.Anything, mock.Anything)
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		_, err := newTestAggregator(new(MockStore)).Build(ctx, "s1", "admin")

		assert.EqualError(t, err, "Invalid dashboard type")
	})
}

func TestBatchMetrics(t *testing.T) {
	b := model.Batch{ID: "b1", Name: "Empty"}

	m := batchMetrics(b, nil, now)

	assert.Equal(t, BatchMetrics{BatchID: "b1", BatchName: "Empty"}, m)
}

func TestCurrentStreak(t *testing.T) {
	day := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	activities := []model.Activity{
		{OccurredAt: day.Add(1 * time.Hour)},
		{OccurredAt: day.Add(23 * time.Hour)},
		{OccurredAt: day.Add(25 * time.Hour)},
		{OccurredAt: day.Add(-72 * time.Hour)},
	}

	assert.Equal(t, 3, currentStreak(activities))
	assert.Equal(t, 0, currentStreak(nil))
}

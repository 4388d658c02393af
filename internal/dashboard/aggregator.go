// internal/dashboard/aggregator.go

// Package dashboard assembles the read models behind the student and teacher dashboards.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"spygit/internal/database"
	custom_errors "spygit/internal/errors"
	"spygit/internal/model"
)

const (
	TypeStudent = "student"
	TypeTeacher = "teacher"

	activityWindow = 30 * 24 * time.Hour
	activeWindow   = 3 * 24 * time.Hour
	recentAnalyses = 3
)

type Store interface {
	GetUser(ctx context.Context, id string) (model.User, error)
	ListActivities(ctx context.Context, studentIDs []string, since time.Time) ([]model.Activity, error)
	ListRepositoriesByStudents(ctx context.Context, studentIDs []string) ([]model.Repository, error)
	ListAnalysesByRepositories(ctx context.Context, repositoryIDs []string) ([]model.Analysis, error)
	ListActiveBatchesByTeacher(ctx context.Context, teacherID string) ([]model.Batch, error)
	ListBatchMembers(ctx context.Context, batchIDs []string) ([]database.BatchMember, error)
}

type Aggregator struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewAggregator(store Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logger.With("component", "dashboard"),
		now:    time.Now,
	}
}

// Build returns the dashboard of the given type for userID. Teacher dashboards are only
// served to users with the teacher role.
func (a *Aggregator) Build(ctx context.Context, userID, dashboardType string) (any, error) {
	switch dashboardType {
	case TypeStudent:
		return a.Student(ctx, userID)
	case TypeTeacher:
		user, err := a.store.GetUser(ctx, userID)
		if errors.Is(err, custom_errors.ErrNotFound) {
			return nil, custom_errors.ErrInvalidDashboardType
		}
		if err != nil {
			return nil, err
		}
		if user.Role != model.RoleTeacher {
			return nil, custom_errors.ErrInvalidDashboardType
		}
		return a.Teacher(ctx, userID)
	default:
		return nil, custom_errors.ErrInvalidDashboardType
	}
}

// Student returns the caller's last 30 days of activity, repositories and analyses.
func (a *Aggregator) Student(ctx context.Context, studentID string) (StudentView, error) {
	ids := []string{studentID}

	activities, err := a.store.ListActivities(ctx, ids, a.now().Add(-activityWindow))
	if err != nil {
		return StudentView{}, err
	}

	repos, err := a.store.ListRepositoriesByStudents(ctx, ids)
	if err != nil {
		return StudentView{}, err
	}

	analyses, err := a.store.ListAnalysesByRepositories(ctx, repositoryIDs(repos))
	if err != nil {
		return StudentView{}, err
	}
	byRepo := groupAnalyses(analyses)

	views := make([]RepositoryView, 0, len(repos))
	var flattened []AnalysisView
	for _, r := range repos {
		v := RepositoryView{Repository: r, Analyses: byRepo[r.ID]}
		if v.Analyses == nil {
			v.Analyses = []AnalysisView{}
		}
		views = append(views, v)
		flattened = append(flattened, v.Analyses...)
	}

	return StudentView{
		Activities:   activities,
		Repositories: views,
		Stats: StudentStats{
			TotalCommits:       countCommits(activities),
			ActiveRepositories: len(repos),
			CurrentStreak:      currentStreak(activities),
			RecentAnalyses:     firstN(flattened, recentAnalyses),
		},
	}, nil
}

// Teacher returns the caller's active batches with their students and health metrics.
func (a *Aggregator) Teacher(ctx context.Context, teacherID string) (TeacherView, error) {
	now := a.now()

	batches, err := a.store.ListActiveBatchesByTeacher(ctx, teacherID)
	if err != nil {
		return TeacherView{}, err
	}

	batchIDs := make([]string, len(batches))
	for i, b := range batches {
		batchIDs[i] = b.ID
	}

	members, err := a.store.ListBatchMembers(ctx, batchIDs)
	if err != nil {
		return TeacherView{}, err
	}

	studentIDs := uniqueStudentIDs(members)

	repos, err := a.store.ListRepositoriesByStudents(ctx, studentIDs)
	if err != nil {
		return TeacherView{}, err
	}

	analyses, err := a.store.ListAnalysesByRepositories(ctx, repositoryIDs(repos))
	if err != nil {
		return TeacherView{}, err
	}

	activities, err := a.store.ListActivities(ctx, studentIDs, now.Add(-activityWindow))
	if err != nil {
		return TeacherView{}, err
	}

	students := buildStudentSummaries(members, repos, analyses, activities)

	view := TeacherView{
		Batches: make([]BatchView, 0, len(batches)),
		Metrics: make([]BatchMetrics, 0, len(batches)),
		Alerts:  []string{},
	}
	for _, b := range batches {
		bv := BatchView{Batch: b, BatchStudents: []BatchStudentView{}}
		var enrolled []StudentSummary
		for _, m := range members {
			if m.BatchID != b.ID {
				continue
			}
			s := students[m.Student.ID]
			bv.BatchStudents = append(bv.BatchStudents, BatchStudentView{Student: s})
			enrolled = append(enrolled, s)
		}
		view.Batches = append(view.Batches, bv)
		view.Metrics = append(view.Metrics, batchMetrics(b, enrolled, now))
	}

	return view, nil
}

func buildStudentSummaries(members []database.BatchMember, repos []model.Repository, analyses []model.Analysis, activities []model.Activity) map[string]StudentSummary {
	grades := make(map[string][]GradeView)
	for _, an := range analyses {
		grades[an.RepositoryID] = append(grades[an.RepositoryID], GradeView{OverallGrade: an.OverallGrade, AnalyzedAt: an.AnalyzedAt})
	}

	reposByStudent := make(map[string][]StudentRepository)
	for _, r := range repos {
		g := grades[r.ID]
		if g == nil {
			g = []GradeView{}
		}
		reposByStudent[r.StudentID] = append(reposByStudent[r.StudentID], StudentRepository{ID: r.ID, RepoName: r.RepoName, Analyses: g})
	}

	activitiesByStudent := make(map[string][]ActivityStamp)
	for _, a := range activities {
		activitiesByStudent[a.StudentID] = append(activitiesByStudent[a.StudentID], ActivityStamp{ActivityType: a.ActivityType, OccurredAt: a.OccurredAt})
	}

	students := make(map[string]StudentSummary, len(members))
	for _, m := range members {
		id := m.Student.ID
		if _, ok := students[id]; ok {
			continue
		}
		s := StudentSummary{
			ID:             id,
			FullName:       m.Student.FullName,
			GithubUsername: m.Student.GithubUsername,
			Repositories:   reposByStudent[id],
			Activities:     activitiesByStudent[id],
		}
		if s.Repositories == nil {
			s.Repositories = []StudentRepository{}
		}
		if s.Activities == nil {
			s.Activities = []ActivityStamp{}
		}
		students[id] = s
	}
	return students
}

// batchMetrics summarizes a batch. A student is active with any activity in the last three
// days; the average grade uses the newest analysis of each student's newest repository.
func batchMetrics(b model.Batch, students []StudentSummary, now time.Time) BatchMetrics {
	cutoff := now.Add(-activeWindow)

	active := 0
	var gradeSum float64
	for _, s := range students {
		for _, a := range s.Activities {
			if !a.OccurredAt.Before(cutoff) {
				active++
				break
			}
		}
		if len(s.Repositories) > 0 && len(s.Repositories[0].Analyses) > 0 {
			if g := s.Repositories[0].Analyses[0].OverallGrade; g != nil {
				gradeSum += *g
			}
		}
	}

	return BatchMetrics{
		BatchID:        b.ID,
		BatchName:      b.Name,
		TotalStudents:  len(students),
		ActiveStudents: active,
		AverageGrade:   gradeSum / float64(max(len(students), 1)),
		NeedsAttention: len(students) - active,
	}
}

// currentStreak counts the distinct UTC calendar days that have activity.
func currentStreak(activities []model.Activity) int {
	days := make(map[string]struct{}, len(activities))
	for _, a := range activities {
		days[a.OccurredAt.UTC().Format(time.DateOnly)] = struct{}{}
	}
	return len(days)
}

func countCommits(activities []model.Activity) int {
	n := 0
	for _, a := range activities {
		if a.ActivityType == model.ActivityCommit {
			n++
		}
	}
	return n
}

func groupAnalyses(analyses []model.Analysis) map[string][]AnalysisView {
	byRepo := make(map[string][]AnalysisView)
	for _, an := range analyses {
		byRepo[an.RepositoryID] = append(byRepo[an.RepositoryID], newAnalysisView(an))
	}
	return byRepo
}

func repositoryIDs(repos []model.Repository) []string {
	ids := make([]string, len(repos))
	for i, r := range repos {
		ids[i] = r.ID
	}
	return ids
}

func uniqueStudentIDs(members []database.BatchMember) []string {
	seen := make(map[string]struct{}, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.Student.ID]; ok {
			continue
		}
		seen[m.Student.ID] = struct{}{}
		ids = append(ids, m.Student.ID)
	}
	return ids
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[:n]
	}
	if items == nil {
		return []T{}
	}
	return items
}

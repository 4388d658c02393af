// internal/dashboard/views.go
package dashboard

import (
	"time"

	"spygit/internal/model"
)

type StudentView struct {
	Activities   []model.Activity `json:"activities"`
	Repositories []RepositoryView `json:"repositories"`
	Stats        StudentStats     `json:"stats"`
}

type StudentStats struct {
	TotalCommits       int            `json:"totalCommits"`
	ActiveRepositories int            `json:"activeRepositories"`
	CurrentStreak      int            `json:"currentStreak"`
	RecentAnalyses     []AnalysisView `json:"recentAnalyses"`
}

type RepositoryView struct {
	model.Repository
	Analyses []AnalysisView `json:"analyses"`
}

// AnalysisView is an analysis with the title of the assignment it graded.
type AnalysisView struct {
	model.Analysis
	Assignments *AssignmentRef `json:"assignments"`
}

type AssignmentRef struct {
	Title string `json:"title"`
}

func newAnalysisView(a model.Analysis) AnalysisView {
	v := AnalysisView{Analysis: a}
	if a.AssignmentTitle != nil {
		v.Assignments = &AssignmentRef{Title: *a.AssignmentTitle}
	}
	return v
}

type TeacherView struct {
	Batches []BatchView    `json:"batches"`
	Metrics []BatchMetrics `json:"metrics"`
	Alerts  []string       `json:"alerts"`
}

type BatchView struct {
	model.Batch
	BatchStudents []BatchStudentView `json:"batch_students"`
}

type BatchStudentView struct {
	Student StudentSummary `json:"student"`
}

type StudentSummary struct {
	ID             string              `json:"id"`
	FullName       *string             `json:"full_name"`
	GithubUsername *string             `json:"github_username"`
	Repositories   []StudentRepository `json:"repositories"`
	Activities     []ActivityStamp     `json:"activities"`
}

type StudentRepository struct {
	ID       string      `json:"id"`
	RepoName string      `json:"repo_name"`
	Analyses []GradeView `json:"analyses"`
}

type GradeView struct {
	OverallGrade *float64   `json:"overall_grade"`
	AnalyzedAt   *time.Time `json:"analyzed_at"`
}

type ActivityStamp struct {
	ActivityType model.ActivityType `json:"activity_type"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

type BatchMetrics struct {
	BatchID        string  `json:"batchId"`
	BatchName      string  `json:"batchName"`
	TotalStudents  int     `json:"totalStudents"`
	ActiveStudents int     `json:"activeStudents"`
	AverageGrade   float64 `json:"averageGrade"`
	NeedsAttention int     `json:"needsAttention"`
}

// internal/model/models.go
package model

import (
	"encoding/json"
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

type ActivityType string

const (
	ActivityCommit      ActivityType = "commit"
	ActivityPullRequest ActivityType = "pull_request"
	ActivityIssue       ActivityType = "issue"
	ActivityCreate      ActivityType = "create"
	ActivityPush        ActivityType = "push"
)

// User mirrors the users table, including the GitHub profile fields kept up to date by sync.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FullName           *string    `json:"full_name"`
	Role               UserRole   `json:"role"`
	GithubUsername     *string    `json:"github_username"`
	GithubAvatarURL    *string    `json:"github_avatar_url"`
	GithubAccessToken  *string    `json:"-"`
	GithubRefreshToken *string    `json:"-"`
	GithubReposCount   *int       `json:"github_repos_count"`
	LastGithubSync     *time.Time `json:"last_github_sync"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Repository is a student repository tracked by the service.
type Repository struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	RepoName      string     `json:"repo_name"`
	RepoURL       string     `json:"repo_url"`
	GithubRepoID  *int64     `json:"github_repo_id"`
	DefaultBranch string     `json:"default_branch"`
	AssignmentID  *string    `json:"assignment_id"`
	IsActive      bool       `json:"is_active"`
	WebhookID     *int64     `json:"webhook_id"`
	LastSyncedAt  *time.Time `json:"last_synced_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Activity is an immutable student event. CommitSHA dedups commits, GithubEventID everything else.
type Activity struct {
	ID            string          `json:"id"`
	StudentID     string          `json:"student_id"`
	RepositoryID  *string         `json:"repository_id"`
	ActivityType  ActivityType    `json:"activity_type"`
	CommitSHA     *string         `json:"commit_sha"`
	CommitMessage *string         `json:"commit_message"`
	GithubEventID *string         `json:"github_event_id"`
	Additions     *int            `json:"additions"`
	Deletions     *int            `json:"deletions"`
	FilesChanged  *int            `json:"files_changed"`
	Metadata      json.RawMessage `json:"metadata"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Batch is a cohort of students owned by a teacher.
type Batch struct {
	ID          string     `json:"id"`
	TeacherID   string     `json:"teacher_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type BatchStudent struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id"`
	StudentID string    `json:"student_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}

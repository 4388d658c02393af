// internal/model/github.go
package model

import "time"

// GitHubProfile is the authenticated GitHub account of a student.
type GitHubProfile struct {
	Login       string
	AvatarURL   string
	PublicRepos int
}

// GitHubRepository holds the metadata of a GitHub repository.
type GitHubRepository struct {
	GithubRepoID  int64
	Owner         string
	Name          string
	FullName      string
	URL           string
	DefaultBranch string
	Private       bool
	Description   *string
	RepoUpdatedAt time.Time
}

type GitHubCommit struct {
	SHA          string
	RepoName     string
	AuthorName   string
	AuthorEmail  string
	Message      string
	URL          string
	CommitDate   time.Time
	Additions    *int
	Deletions    *int
	FilesChanged *int
}

type GitHubPullRequest struct {
	ID        int64
	Number    int
	Title     string
	State     string
	URL       string
	UpdatedAt time.Time
}

// GitHubPullRequestPage is one page of a pull request search with the overall match count.
type GitHubPullRequestPage struct {
	TotalCount int
	Items      []GitHubPullRequest
}

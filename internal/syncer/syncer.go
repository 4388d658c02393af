// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"spygit/internal/database"
	custom_errors "spygit/internal/errors"
	"spygit/internal/metrics"
	"spygit/internal/model"
	"spygit/pkg/logger/sl"
)

// GitHub is the part of the GitHub API a sync needs, scoped to one user's token.
type GitHub interface {
	GetAuthenticatedUser(ctx context.Context) (model.GitHubProfile, error)
	ListRepositories(ctx context.Context, perPage int) ([]model.GitHubRepository, error)
	ListCommits(ctx context.Context, owner, name, author string, perPage int) ([]model.GitHubCommit, error)
	SearchPullRequests(ctx context.Context, login string, perPage int) (model.GitHubPullRequestPage, error)
}

// Store is used inside the sync transaction.
type Store interface {
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
	UpsertRepository(ctx context.Context, arg database.UpsertRepositoryParams) (model.Repository, error)
	GetRepositoryByStudentAndName(ctx context.Context, studentID, repoName string) (model.Repository, error)
	UpsertCommitActivity(ctx context.Context, arg database.CommitActivityParams) error
	UpsertEventActivity(ctx context.Context, arg database.EventActivityParams) error
	UpdateUserGithubProfile(ctx context.Context, arg database.UpdateUserGithubProfileParams) error
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (model.User, error)
	ListUsersWithGithubToken(ctx context.Context) ([]string, error)
}

type Options struct {
	RepoPageSize     int
	CommitRepoLimit  int
	CommitsPerRepo   int
	PRPageSize       int
	MaxStoredCommits int
	Concurrency      int
	Interval         time.Duration
}

// Summary is reported back to the caller of a sync.
type Summary struct {
	Username      string `json:"username"`
	ReposCount    int    `json:"repos_count"`
	CommitsSynced int    `json:"commits_synced"`
	PRsCount      int    `json:"prs_count"`
}

// Syncer pulls a student's GitHub activity and mirrors it into the database.
type Syncer struct {
	users     UserStore
	inTx      func(ctx context.Context, fn func(Store) error) error
	newGitHub func(token string) GitHub
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(db *database.Store, newGitHub func(token string) GitHub, opts Options, logger *slog.Logger) *Syncer {
	return &Syncer{
		users: db,
		inTx: func(ctx context.Context, fn func(Store) error) error {
			return db.InTx(ctx, func(q *database.Queries) error { return fn(q) })
		},
		newGitHub: newGitHub,
		opts:      opts,
		logger:    logger.With("component", "syncer"),
		now:       time.Now,
	}
}

// snapshot is everything fetched from GitHub for one student.
type snapshot struct {
	profile model.GitHubProfile
	repos   []model.GitHubRepository
	commits []model.GitHubCommit
	prs     model.GitHubPullRequestPage
}

// SyncStudent fetches the GitHub account behind token and stores it for studentID.
func (s *Syncer) SyncStudent(ctx context.Context, studentID, token string) (Summary, error) {
	if token == "" {
		return Summary{}, custom_errors.ErrUnauthenticated
	}

	logger := s.logger.With("student_id", studentID)
	logger.Info("Syncing GitHub data")

	snap, err := s.fetch(ctx, logger, s.newGitHub(token))
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return Summary{}, err
	}

	err = s.inTx(ctx, func(q Store) error {
		return s.persist(ctx, logger, q, studentID, snap)
	})
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return Summary{}, err
	}

	metrics.SyncRunsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logger.Info("GitHub sync completed", "username", snap.profile.Login, "repos", len(snap.repos), "commits", len(snap.commits))

	return Summary{
		Username:      snap.profile.Login,
		ReposCount:    len(snap.repos),
		CommitsSynced: len(snap.commits),
		PRsCount:      snap.prs.TotalCount,
	}, nil
}

// SyncStoredToken syncs a user with the GitHub token saved on their profile.
func (s *Syncer) SyncStoredToken(ctx context.Context, userID string) (Summary, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	if user.GithubAccessToken == nil || *user.GithubAccessToken == "" {
		return Summary{}, fmt.Errorf("no GitHub token stored for user: %w", custom_errors.ErrUnauthenticated)
	}
	return s.SyncStudent(ctx, userID, *user.GithubAccessToken)
}

func (s *Syncer) fetch(ctx context.Context, logger *slog.Logger, gh GitHub) (snapshot, error) {
	var snap snapshot

	profile, err := gh.GetAuthenticatedUser(ctx)
	if err != nil {
		return snap, err
	}
	snap.profile = profile

	repos, err := gh.ListRepositories(ctx, s.opts.RepoPageSize)
	if err != nil {
		return snap, err
	}
	snap.repos = repos

	snap.commits = s.fetchCommits(ctx, logger, gh, profile.Login, repos)

	prs, err := gh.SearchPullRequests(ctx, profile.Login, s.opts.PRPageSize)
	if err != nil {
		return snap, err
	}
	snap.prs = prs

	return snap, nil
}

// fetchCommits lists the author's commits for the most recently updated repositories.
// A repository whose listing fails contributes no commits.
func (s *Syncer) fetchCommits(ctx context.Context, logger *slog.Logger, gh GitHub, login string, repos []model.GitHubRepository) []model.GitHubCommit {
	n := min(len(repos), max(s.opts.CommitRepoLimit, 0))
	perRepo := make([][]model.GitHubCommit, n)

	var g errgroup.Group
	g.SetLimit(max(s.opts.Concurrency, 1))

	for i, repo := range repos[:n] {
		g.Go(func() error {
			commits, err := gh.ListCommits(ctx, repo.Owner, repo.Name, login, s.opts.CommitsPerRepo)
			if err != nil {
				logger.Warn("Failed to fetch commits, skipping repository", "repo", repo.FullName, sl.Err(err))
				return nil
			}
			perRepo[i] = commits
			return nil
		})
	}
	_ = g.Wait()

	var all []model.GitHubCommit
	for _, commits := range perRepo {
		all = append(all, commits...)
	}
	return all
}

// persist writes a snapshot. Items are isolated by savepoints so one bad row is skipped;
// the profile update runs last and its failure aborts the transaction.
func (s *Syncer) persist(ctx context.Context, logger *slog.Logger, q Store, studentID string, snap snapshot) error {
	now := s.now()

	for i, repo := range snap.repos {
		err := s.inSavepoint(ctx, q, fmt.Sprintf("repo_%d", i), func() error {
			_, err := q.UpsertRepository(ctx, database.UpsertRepositoryParams{
				StudentID:     studentID,
				RepoName:      repo.Name,
				RepoURL:       repo.URL,
				GithubRepoID:  repo.GithubRepoID,
				DefaultBranch: defaultBranch(repo.DefaultBranch),
				LastSyncedAt:  now,
			})
			return err
		})
		if err != nil {
			logger.Error("Failed to upsert repository", "repo", repo.Name, sl.Err(err))
		}
	}

	stored := snap.commits[:min(len(snap.commits), max(s.opts.MaxStoredCommits, 0))]
	for i, commit := range stored {
		err := s.inSavepoint(ctx, q, fmt.Sprintf("commit_%d", i), func() error {
			return s.storeCommit(ctx, q, studentID, commit)
		})
		if err != nil {
			logger.Error("Failed to store commit activity", "sha", commit.SHA, sl.Err(err))
			continue
		}
		metrics.ActivitiesRecordedTotal.WithLabelValues(metrics.SourceSync, string(model.ActivityCommit)).Inc()
	}

	for i, pr := range snap.prs.Items {
		err := s.inSavepoint(ctx, q, fmt.Sprintf("pr_%d", i), func() error {
			return q.UpsertEventActivity(ctx, database.EventActivityParams{
				StudentID:     studentID,
				ActivityType:  model.ActivityPullRequest,
				GithubEventID: fmt.Sprintf("%d", pr.ID),
				Metadata: map[string]any{
					"pr_number": pr.Number,
					"title":     pr.Title,
					"state":     pr.State,
					"url":       pr.URL,
				},
				OccurredAt: pr.UpdatedAt,
			})
		})
		if err != nil {
			logger.Error("Failed to store pull request activity", "pr_id", pr.ID, sl.Err(err))
			continue
		}
		metrics.ActivitiesRecordedTotal.WithLabelValues(metrics.SourceSync, string(model.ActivityPullRequest)).Inc()
	}

	return q.UpdateUserGithubProfile(ctx, database.UpdateUserGithubProfileParams{
		ID:         studentID,
		Username:   snap.profile.Login,
		AvatarURL:  snap.profile.AvatarURL,
		ReposCount: snap.profile.PublicRepos,
		SyncedAt:   now,
	})
}

// storeCommit upserts a commit against the student's repository of the same name.
// Commits of repositories that are not stored are dropped.
func (s *Syncer) storeCommit(ctx context.Context, q Store, studentID string, c model.GitHubCommit) error {
	repo, err := q.GetRepositoryByStudentAndName(ctx, studentID, c.RepoName)
	if errors.Is(err, custom_errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	return q.UpsertCommitActivity(ctx, database.CommitActivityParams{
		StudentID:     studentID,
		RepositoryID:  &repo.ID,
		CommitSHA:     c.SHA,
		CommitMessage: c.Message,
		Additions:     c.Additions,
		Deletions:     c.Deletions,
		FilesChanged:  c.FilesChanged,
		Metadata: map[string]any{
			"author_name":  c.AuthorName,
			"author_email": c.AuthorEmail,
			"url":          c.URL,
		},
		OccurredAt: c.CommitDate,
	})
}

// inSavepoint runs fn between SAVEPOINT and RELEASE, rolling back to the savepoint on error
// so the enclosing transaction stays usable.
func (s *Syncer) inSavepoint(ctx context.Context, q Store, name string, fn func() error) error {
	if err := q.Savepoint(ctx, name); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rbErr := q.RollbackToSavepoint(ctx, name); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return q.ReleaseSavepoint(ctx, name)
}

func defaultBranch(b string) string {
	if b == "" {
		return "main"
	}
	return b
}

// Start periodically syncs every user with a stored token until ctx is cancelled.
// It returns immediately when no interval is configured.
func (s *Syncer) Start(ctx context.Context) {
	if s.opts.Interval <= 0 {
		s.logger.Info("Periodic sync disabled")
		return
	}

	s.logger.Info("Starting syncer", "interval", s.opts.Interval.String(), "concurrency", s.opts.Concurrency)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.runSyncCycle(ctx) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.runSyncCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Syncer shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runSyncCycle syncs all users with stored tokens concurrently.
func (s *Syncer) runSyncCycle(ctx context.Context) {
	s.logger.Info("Starting new sync cycle")

	userIDs, err := s.users.ListUsersWithGithubToken(ctx)
	if err != nil {
		s.logger.Error("Failed to list users with GitHub tokens", sl.Err(err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.opts.Concurrency, 1))

	for _, userID := range userIDs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			_, err := s.SyncStoredToken(gctx, userID)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Failed to sync user", "user_id", userID, sl.Err(err))
			}
			return nil
		})
	}

	_ = g.Wait()
	s.logger.Info("Sync cycle finished", "users", len(userIDs))
}

// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "spygit/internal/errors"
	"spygit/internal/model"
)

const serviceName = "GitHub"

// Client is a wrapper around the go-github client authenticated as a single user.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// Factory creates user-scoped clients that share the API base URL and logger.
type Factory struct {
	baseURL *url.URL
	logger  *slog.Logger
}

// NewFactory validates baseURL (empty means api.github.com) and returns a Factory.
func NewFactory(baseURL string, logger *slog.Logger) (*Factory, error) {
	f := &Factory{logger: logger}
	if baseURL == "" {
		return f, nil
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
	}
	f.baseURL = u
	return f, nil
}

// ForToken creates a client whose requests carry the given OAuth token.
func (f *Factory) ForToken(token string) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	gh := github.NewClient(tc)
	if f.baseURL != nil {
		gh.BaseURL = f.baseURL
	}

	return &Client{
		gh:     gh,
		logger: f.logger,
	}
}

// GetAuthenticatedUser fetches the profile the token belongs to.
func (c *Client) GetAuthenticatedUser(ctx context.Context) (model.GitHubProfile, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return model.GitHubProfile{}, translateError(err)
	}
	return model.GitHubProfile{
		Login:       user.GetLogin(),
		AvatarURL:   user.GetAvatarURL(),
		PublicRepos: user.GetPublicRepos(),
	}, nil
}

// ListRepositories fetches one page of the user's repositories, most recently updated first.
func (c *Client) ListRepositories(ctx context.Context, perPage int) ([]model.GitHubRepository, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort: "updated",
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	repos, _, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, translateError(err)
	}

	result := make([]model.GitHubRepository, 0, len(repos))
	for _, r := range repos {
		result = append(result, toInternalRepository(r))
	}
	return result, nil
}

// ListCommits fetches the most recent commits of a repository authored by author.
func (c *Client) ListCommits(ctx context.Context, owner, name, author string, perPage int) ([]model.GitHubCommit, error) {
	c.logger.Debug("Fetching commits", "owner", owner, "repo", name, "author", author)

	opts := &github.CommitsListOptions{
		Author: author,
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
	if err != nil {
		return nil, translateError(err)
	}

	result := make([]model.GitHubCommit, 0, len(commits))
	for _, commit := range commits {
		result = append(result, toInternalCommit(name, commit))
	}
	return result, nil
}

// SearchPullRequests finds pull requests opened by login, most recently updated first.
func (c *Client) SearchPullRequests(ctx context.Context, login string, perPage int) (model.GitHubPullRequestPage, error) {
	opts := &github.SearchOptions{
		Sort: "updated",
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	res, _, err := c.gh.Search.Issues(ctx, fmt.Sprintf("author:%s type:pr", login), opts)
	if err != nil {
		return model.GitHubPullRequestPage{}, translateError(err)
	}

	page := model.GitHubPullRequestPage{
		TotalCount: res.GetTotal(),
		Items:      make([]model.GitHubPullRequest, 0, len(res.Issues)),
	}
	for _, issue := range res.Issues {
		page.Items = append(page.Items, toInternalPullRequest(issue))
	}
	return page, nil
}

// translateError maps go-github failures onto the service's error taxonomy.
func translateError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &custom_errors.UpstreamError{
			Service:     serviceName,
			StatusCode:  statusOf(rateErr.Response, http.StatusForbidden),
			Message:     rateErr.Message,
			RateLimited: true,
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &custom_errors.UpstreamError{
			Service:     serviceName,
			StatusCode:  statusOf(abuseErr.Response, http.StatusForbidden),
			Message:     abuseErr.Message,
			RateLimited: true,
		}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		status := statusOf(respErr.Response, http.StatusBadGateway)
		return &custom_errors.UpstreamError{
			Service:     serviceName,
			StatusCode:  status,
			Message:     http.StatusText(status),
			RateLimited: status == http.StatusTooManyRequests,
		}
	}

	return err
}

func statusOf(resp *http.Response, fallback int) int {
	if resp == nil {
		return fallback
	}
	return resp.StatusCode
}

func toInternalRepository(r *github.Repository) model.GitHubRepository {
	return model.GitHubRepository{
		GithubRepoID:  r.GetID(),
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		URL:           r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
		Description:   r.Description,
		RepoUpdatedAt: r.GetUpdatedAt().Time,
	}
}

func toInternalCommit(repoName string, c *github.RepositoryCommit) model.GitHubCommit {
	commit := model.GitHubCommit{
		SHA:         c.GetSHA(),
		RepoName:    repoName,
		AuthorName:  c.GetCommit().GetAuthor().GetName(),
		AuthorEmail: c.GetCommit().GetAuthor().GetEmail(),
		Message:     c.GetCommit().GetMessage(),
		URL:         c.GetHTMLURL(),
		CommitDate:  c.GetCommit().GetAuthor().GetDate().Time,
	}

	// The list endpoint omits stats; single-commit payloads carry them.
	if stats := c.GetStats(); stats != nil {
		commit.Additions = stats.Additions
		commit.Deletions = stats.Deletions
	}
	if c.Files != nil {
		n := len(c.Files)
		commit.FilesChanged = &n
	}
	return commit
}

func toInternalPullRequest(i *github.Issue) model.GitHubPullRequest {
	return model.GitHubPullRequest{
		ID:        i.GetID(),
		Number:    i.GetNumber(),
		Title:     i.GetTitle(),
		State:     i.GetState(),
		URL:       i.GetHTMLURL(),
		UpdatedAt: i.GetUpdatedAt().Time,
	}
}

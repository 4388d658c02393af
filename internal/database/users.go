// internal/database/users.go
package database

import (
	"context"
	"fmt"
	"time"

	custom_errors "spygit/internal/errors"
	"spygit/internal/model"
)

const getUser = `
SELECT id, email, full_name, role::text, github_username, github_avatar_url,
       github_access_token, github_refresh_token, github_repos_count, last_github_sync,
       created_at, updated_at
FROM users
WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id string) (model.User, error) {
	const op = "internal.database.GetUser"

	var u model.User
	err := q.db.QueryRow(ctx, getUser, id).Scan(
		&u.ID, &u.Email, &u.FullName, &u.Role, &u.GithubUsername, &u.GithubAvatarURL,
		&u.GithubAccessToken, &u.GithubRefreshToken, &u.GithubReposCount, &u.LastGithubSync,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return model.User{}, fmt.Errorf("%s: %w: user with id '%s'", op, custom_errors.ErrNotFound, id)
		}
		return model.User{}, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	return u, nil
}

type UpdateUserGithubProfileParams struct {
	ID         string
	Username   string
	AvatarURL  string
	ReposCount int
	SyncedAt   time.Time
}

const updateUserGithubProfile = `
UPDATE users
SET github_username = $2,
    github_avatar_url = $3,
    github_repos_count = $4,
    last_github_sync = $5,
    updated_at = now()
WHERE id = $1`

// UpdateUserGithubProfile mirrors the GitHub account onto the user row.
func (q *Queries) UpdateUserGithubProfile(ctx context.Context, arg UpdateUserGithubProfileParams) error {
	const op = "internal.database.UpdateUserGithubProfile"

	tag, err := q.db.Exec(ctx, updateUserGithubProfile, arg.ID, arg.Username, arg.AvatarURL, arg.ReposCount, arg.SyncedAt)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w: user with id '%s'", op, custom_errors.ErrNotFound, arg.ID)
	}
	return nil
}

const listUsersWithGithubToken = `
SELECT id
FROM users
WHERE github_access_token IS NOT NULL AND github_access_token <> ''
ORDER BY last_github_sync ASC NULLS FIRST`

// ListUsersWithGithubToken returns the ids of users that stored a GitHub token,
// least recently synced first.
func (q *Queries) ListUsersWithGithubToken(ctx context.Context) ([]string, error) {
	const op = "internal.database.ListUsersWithGithubToken"

	rows, err := q.db.Query(ctx, listUsersWithGithubToken)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

// internal/database/notifications.go
package database

import (
	"context"
	"fmt"
)

type CreateNotificationParams struct {
	UserID   string
	Type     string
	Title    string
	Message  string
	Metadata map[string]any
}

const createNotification = `
INSERT INTO notifications (user_id, type, title, message, metadata)
VALUES ($1, $2, $3, $4, $5)`

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) error {
	const op = "internal.database.CreateNotification"

	metadata := arg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	if _, err := q.db.Exec(ctx, createNotification, arg.UserID, arg.Type, arg.Title, arg.Message, metadata); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}
	return nil
}

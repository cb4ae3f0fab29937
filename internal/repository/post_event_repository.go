package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/contentflow/internal/models"
)

type PostEventRepository interface {
	ListByPostID(ctx context.Context, postID string) ([]*models.PostEvent, error)
}

type postEventRepository struct {
	db *sql.DB
}

func NewPostEventRepository(db *sql.DB) PostEventRepository {
	return &postEventRepository{db: db}
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev *models.PostEvent) error {
	query := `
		INSERT INTO post_events (id, post_id, action, from_status, to_status, attempt, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.ExecContext(ctx, query, ev.ID, ev.PostID, ev.Action, string(ev.FromStatus),
		string(ev.ToStatus), int64(ev.Attempt), ev.Note, ev.CreatedAt.UTC())
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ListByPostID returns the post's history, oldest first.
func (r *postEventRepository) ListByPostID(ctx context.Context, postID string) ([]*models.PostEvent, error) {
	query := `
		SELECT id, post_id, action, from_status, to_status, attempt, note, created_at
		FROM post_events WHERE post_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var events []*models.PostEvent
	for rows.Next() {
		var ev models.PostEvent
		err := rows.Scan(&ev.ID, &ev.PostID, &ev.Action, &ev.FromStatus, &ev.ToStatus, &ev.Attempt, &ev.Note, &ev.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		events = append(events, &ev)
	}
	return events, rows.Err()
}

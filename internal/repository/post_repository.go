package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/contentflow/internal/lifecycle"
	"github.com/maheshrc27/contentflow/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, userID string, filter models.PostFilter) ([]*models.Post, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	ListStale(ctx context.Context, claimedBefore time.Time) ([]*models.Post, error)
	Claim(ctx context.Context, next *models.Post, expectedStatus models.Status, expectedVersion int64, event *models.PostEvent) (bool, error)
	Update(ctx context.Context, next *models.Post, expectedStatus models.Status, expectedVersion int64, event *models.PostEvent) error
	RecordProviderID(ctx context.Context, id string, version int64, platformPostID string) error
	Remove(ctx context.Context, id string, expectedStatus models.Status, expectedVersion int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, platform, content_text, media_url, tags, content_pillar, status,
	suggested_time, scheduled_time, posted_at, platform_post_id, attempt_count, last_error,
	claimed_from, claimed_at, claimed_post_id, version, created_at, updated_at`

// Create inserts the post together with its create event. Without a tx it
// runs in a transaction of its own.
func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	post.Tags = models.NormalizeTags(post.Tags)
	if post.Version == 0 {
		post.Version = 1
	}
	tags, err := json.Marshal(post.Tags)
	if err != nil {
		return err
	}

	args := []any{
		post.ID, post.UserID, string(post.Platform), post.ContentText, nullable(post.MediaURL), string(tags), post.ContentPillar,
		string(post.Status), utcPtr(post.SuggestedTime), utcPtr(post.ScheduledTime), utcPtr(post.PostedAt),
		nullable(post.PlatformPostID), int64(post.AttemptCount), post.LastError, statusPtr(post.ClaimedFrom), utcPtr(post.ClaimedAt),
		nullable(post.ClaimedPostID), post.Version, post.CreatedAt.UTC(), post.UpdatedAt.UTC(),
	}

	own := tx == nil
	if own {
		tx, err = r.db.BeginTx(ctx, nil)
		if err != nil {
			slog.Info(err.Error())
			return err
		}
		defer tx.Rollback()
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		slog.Info(err.Error())
		return err
	}
	if err := insertEvent(ctx, tx, lifecycle.NewCreatedEvent(post, "")); err != nil {
		return err
	}

	if own {
		if err := tx.Commit(); err != nil {
			slog.Info(err.Error())
			return err
		}
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) List(ctx context.Context, userID string, filter models.PostFilter) ([]*models.Post, error) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Platform != "" {
		args = append(args, string(filter.Platform))
		conds = append(conds, fmt.Sprintf("platform = $%d", len(args)))
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC, id ASC`
	return r.query(ctx, query, args...)
}

// FindDue returns scheduled posts whose time has come, earliest first.
func (r *postRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY scheduled_time ASC, id ASC
		LIMIT $3`
	return r.query(ctx, query, string(models.PostStatusScheduled), now.UTC(), int64(limit))
}

func (r *postRepository) ListStale(ctx context.Context, claimedBefore time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND claimed_at <= $2
		ORDER BY claimed_at ASC, id ASC`
	return r.query(ctx, query, string(models.PostStatusPublishing), claimedBefore.UTC())
}

// Claim writes next only if the stored row still has expectedStatus and
// expectedVersion. It reports false when another actor got there first.
func (r *postRepository) Claim(ctx context.Context, next *models.Post, expectedStatus models.Status, expectedVersion int64, event *models.PostEvent) (bool, error) {
	err := r.Update(ctx, next, expectedStatus, expectedVersion, event)
	if errors.Is(err, lifecycle.ErrStateConflict) || errors.Is(err, lifecycle.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update is the conditional write every transition goes through. The event,
// when given, is appended in the same transaction.
func (r *postRepository) Update(ctx context.Context, next *models.Post, expectedStatus models.Status, expectedVersion int64, event *models.PostEvent) error {
	query := `
		UPDATE posts
		SET content_text = $1,
			media_url = $2,
			tags = $3,
			content_pillar = $4,
			status = $5,
			scheduled_time = $6,
			posted_at = $7,
			platform_post_id = $8,
			attempt_count = $9,
			last_error = $10,
			claimed_from = $11,
			claimed_at = $12,
			claimed_post_id = $13,
			version = $14,
			updated_at = $15
		WHERE id = $16 AND status = $17 AND version = $18
	`

	tags, err := json.Marshal(models.NormalizeTags(next.Tags))
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query,
		next.ContentText, nullable(next.MediaURL), string(tags), next.ContentPillar, string(next.Status),
		utcPtr(next.ScheduledTime), utcPtr(next.PostedAt), nullable(next.PlatformPostID),
		int64(next.AttemptCount), next.LastError, statusPtr(next.ClaimedFrom), utcPtr(next.ClaimedAt),
		nullable(next.ClaimedPostID), expectedVersion+1, next.UpdatedAt.UTC(),
		next.ID, string(expectedStatus), expectedVersion,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var current models.Status
		err := tx.QueryRowContext(ctx, `SELECT status FROM posts WHERE id = $1`, next.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return lifecycle.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("post %s is %s: %w", next.ID, current, lifecycle.ErrStateConflict)
	}

	if event != nil {
		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}

	next.Version = expectedVersion + 1
	return nil
}

// RecordProviderID stores the provider id of a publication on a claim that
// is still held, so a later recovery can finish the post without publishing
// again. The version is left alone.
func (r *postRepository) RecordProviderID(ctx context.Context, id string, version int64, platformPostID string) error {
	query := `UPDATE posts SET claimed_post_id = $1 WHERE id = $2 AND status = $3 AND version = $4`

	res, err := r.db.ExecContext(ctx, query, platformPostID, id, string(models.PostStatusPublishing), version)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return lifecycle.ErrStateConflict
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id string, expectedStatus models.Status, expectedVersion int64) error {
	query := `DELETE FROM posts WHERE id = $1 AND status = $2 AND version = $3`

	res, err := r.db.ExecContext(ctx, query, id, string(expectedStatus), expectedVersion)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return lifecycle.ErrStateConflict
	}
	return nil
}

func (r *postRepository) query(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*models.Post, error) {
	var (
		post                                        models.Post
		mediaURL, platformPostID, claimedFrom       sql.NullString
		claimedPostID                               sql.NullString
		tags                                        string
		suggestedTime, scheduledTime, postedAt, cAt sql.NullTime
	)

	err := row.Scan(
		&post.ID, &post.UserID, &post.Platform, &post.ContentText, &mediaURL, &tags, &post.ContentPillar,
		&post.Status, &suggestedTime, &scheduledTime, &postedAt, &platformPostID, &post.AttemptCount,
		&post.LastError, &claimedFrom, &cAt, &claimedPostID, &post.Version, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &post.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of post %s: %w", post.ID, err)
	}
	post.MediaURL = stringPtr(mediaURL)
	post.PlatformPostID = stringPtr(platformPostID)
	post.ClaimedPostID = stringPtr(claimedPostID)
	if claimedFrom.Valid {
		s := models.Status(claimedFrom.String)
		post.ClaimedFrom = &s
	}
	post.SuggestedTime = timePtr(suggestedTime)
	post.ScheduledTime = timePtr(scheduledTime)
	post.PostedAt = timePtr(postedAt)
	post.ClaimedAt = timePtr(cAt)
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	return &post, nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func statusPtr(s *models.Status) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

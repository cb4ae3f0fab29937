package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/contentflow/internal/lifecycle"
	"github.com/maheshrc27/contentflow/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var allowedMediaTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpg": {}, "png": {},
}

type MediaService interface {
	AttachMedia(ctx context.Context, userID, postID string, file []byte) (*models.Post, error)
}

type mediaService struct {
	q       QueueService
	machine *lifecycle.Machine
	store   Uploader
}

func NewMediaService(q QueueService, machine *lifecycle.Machine, store Uploader) MediaService {
	return &mediaService{q: q, machine: machine, store: store}
}

// AttachMedia uploads an image or video and points the post's media_url at it.
func (s *mediaService) AttachMedia(ctx context.Context, userID, postID string, file []byte) (*models.Post, error) {
	post, err := s.q.Get(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusPublishing {
		return nil, lifecycle.ErrStateConflict
	}
	if !s.machine.Can(post.Status, lifecycle.ActionEdit) {
		return nil, &lifecycle.TransitionError{From: post.Status, To: post.Status, Action: lifecycle.ActionEdit}
	}

	kind, err := filetype.Match(file)
	if err != nil || kind == types.Unknown {
		return nil, &UnsupportedMediaError{Type: "unknown"}
	}
	if _, ok := allowedMediaTypes[kind.Extension]; !ok {
		return nil, &UnsupportedMediaError{Type: kind.Extension}
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%s.%s", userID, id, kind.Extension)

	url, err := s.store.Upload(ctx, key, file, kind.MIME.Value)
	if err != nil {
		return nil, fmt.Errorf("error uploading media: %w", err)
	}
	slog.Info("media uploaded", "post_id", postID, "key", key, "type", kind.MIME.Value)

	return s.q.Edit(ctx, userID, postID, lifecycle.Edit{MediaURL: &url})
}

type UnsupportedMediaError struct {
	Type string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("file type %s is not allowed", e.Type)
}

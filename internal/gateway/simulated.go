package gateway

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/contentflow/internal/models"
)

// Simulated stands in for the provider when no API key is configured.
type Simulated struct{}

func NewSimulated() *Simulated {
	return &Simulated{}
}

func (s *Simulated) Publish(ctx context.Context, post *models.Post) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, Transient(0, err.Error())
	}
	slog.Info("simulated publish", "post_id", post.ID, "platform", post.Platform)
	return &Result{PlatformPostID: "simulated_" + post.ID}, nil
}

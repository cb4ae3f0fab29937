package handlers

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the authenticated API on api.
func RegisterRoutes(api fiber.Router, post *PostHandler, settings *SettingsHandler) {
	api.Get("/settings", settings.GetSettingsInfo)
	api.Put("/settings", settings.UpdateSettings)

	api.Post("/posts/drafts", post.IngestDrafts)
	api.Post("/posts/bulk-approve", post.BulkApprove)
	api.Post("/posts/bulk-post", post.BulkPost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Get("/posts/:id/history", post.History)
	api.Post("/posts/:id/approve", post.Approve)
	api.Post("/posts/:id/reject", post.Reject)
	api.Post("/posts/:id/reconsider", post.Reconsider)
	api.Post("/posts/:id/schedule", post.Schedule)
	api.Post("/posts/:id/cancel-schedule", post.CancelSchedule)
	api.Post("/posts/:id/reset", post.Reset)
	api.Post("/posts/:id/post-now", post.PostNow)
	api.Post("/posts/:id/media", post.AttachMedia)
}

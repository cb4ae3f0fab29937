package handlers

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/contentflow/internal/lifecycle"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/service"
	"github.com/maheshrc27/contentflow/internal/transfer"
)

type PostHandler struct {
	s service.QueueService
	m service.MediaService
}

func NewPostHandler(service service.QueueService, media service.MediaService) *PostHandler {
	return &PostHandler{s: service, m: media}
}

func (h *PostHandler) IngestDrafts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var batch transfer.DraftBatch
	if err := parseBody(c, &batch); err != nil {
		return errorResponse(c, err, nil)
	}

	posts, err := h.s.IngestDrafts(c.Context(), userID, batch.Drafts)
	if err != nil {
		return errorResponse(c, err, nil)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"posts": posts,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var filter models.PostFilter
	if status := c.Query("status"); status != "" {
		filter.Status = models.Status(status)
		if !filter.Status.Public() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("unknown status %q", status),
			})
		}
	}
	if platform := c.Query("platform"); platform != "" {
		p, err := models.ParsePlatform(platform)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		filter.Platform = p
	}

	posts, err := h.s.List(c.Context(), userID, filter)
	if err != nil {
		return errorResponse(c, err, nil)
	}

	return c.JSON(fiber.Map{
		"posts": posts,
	})
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.Get(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err, nil)
	}
	return c.JSON(post)
}

func (h *PostHandler) History(c *fiber.Ctx) error {
	events, err := h.s.History(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err, nil)
	}
	return c.JSON(fiber.Map{
		"events": events,
	})
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	var update transfer.PostUpdate
	if err := parseBody(c, &update); err != nil {
		return errorResponse(c, err, nil)
	}

	post, err := h.s.Edit(c.Context(), GetUserID(c), c.Params("id"), lifecycle.Edit{
		ContentText:   update.ContentText,
		Tags:          update.Tags,
		ContentPillar: update.ContentPillar,
		MediaURL:      update.MediaURL,
	})
	if err != nil {
		return errorResponse(c, err, nil)
	}
	return c.JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	if err := h.s.Remove(c.Context(), GetUserID(c), c.Params("id")); err != nil {
		return errorResponse(c, err, nil)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PostHandler) Approve(c *fiber.Ctx) error {
	return h.respond(c)(h.s.Approve(c.Context(), GetUserID(c), c.Params("id")))
}

func (h *PostHandler) Reject(c *fiber.Ctx) error {
	return h.respond(c)(h.s.Reject(c.Context(), GetUserID(c), c.Params("id")))
}

func (h *PostHandler) Reconsider(c *fiber.Ctx) error {
	return h.respond(c)(h.s.Reconsider(c.Context(), GetUserID(c), c.Params("id")))
}

func (h *PostHandler) Schedule(c *fiber.Ctx) error {
	var req transfer.ScheduleRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err, nil)
	}
	return h.respond(c)(h.s.Schedule(c.Context(), GetUserID(c), c.Params("id"), req.ScheduledTime))
}

func (h *PostHandler) CancelSchedule(c *fiber.Ctx) error {
	return h.respond(c)(h.s.CancelSchedule(c.Context(), GetUserID(c), c.Params("id")))
}

func (h *PostHandler) Reset(c *fiber.Ctx) error {
	return h.respond(c)(h.s.Reset(c.Context(), GetUserID(c), c.Params("id")))
}

func (h *PostHandler) PostNow(c *fiber.Ctx) error {
	return h.respond(c)(h.s.PostNow(c.Context(), GetUserID(c), c.Params("id")))
}

func (h *PostHandler) AttachMedia(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file selected",
		})
	}

	file, err := header.Open()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to read file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to read file",
		})
	}

	return h.respond(c)(h.m.AttachMedia(c.Context(), GetUserID(c), c.Params("id"), data))
}

func (h *PostHandler) BulkApprove(c *fiber.Ctx) error {
	var req transfer.BulkRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err, nil)
	}
	return c.JSON(fiber.Map{
		"results": h.s.BulkApprove(c.Context(), GetUserID(c), req.IDs),
	})
}

func (h *PostHandler) BulkPost(c *fiber.Ctx) error {
	var req transfer.BulkRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err, nil)
	}
	return c.JSON(fiber.Map{
		"results": h.s.BulkPost(c.Context(), GetUserID(c), req.IDs),
	})
}

func (h *PostHandler) respond(c *fiber.Ctx) func(*models.Post, error) error {
	return func(post *models.Post, err error) error {
		if err != nil {
			return errorResponse(c, err, post)
		}
		return c.JSON(post)
	}
}

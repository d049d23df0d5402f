package api

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"routekeeper/internal/engine"
	"routekeeper/internal/geo"
	"routekeeper/internal/logging"
	"routekeeper/internal/timeline"
)

func registerTrackingRoutes(r fiber.Router, h *handlers) {
	r.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(h.deps.Engine.Status())
	})

	r.Get("/timeline", func(c *fiber.Ctx) error {
		return c.JSON(TimelineResponse{State: h.deps.Engine.State(), Timeline: h.deps.Engine.Timeline()})
	})

	r.Post("/fixes", h.postFixes)

	r.Post("/notes", func(c *fiber.Ctx) error {
		var req NoteRequest
		if err := h.parse(c, &req); err != nil {
			return err
		}
		ev, err := h.deps.Engine.AddNote(req.Text)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(ev)
	})

	r.Post("/attachments", func(c *fiber.Ctx) error {
		var req AttachmentRequest
		if err := h.parse(c, &req); err != nil {
			return err
		}
		kind, err := timeline.ParseKind(req.Type)
		if err != nil {
			return err
		}
		ev, err := h.deps.Engine.Annotate(kind, req.Data)
		if err != nil {
			return err
		}
		h.logger.Info("attachment added",
			logging.String(logging.FieldEventType, "attachment_added"),
			logging.String("kind", string(kind)),
			logging.Int("bytes", len(req.Data)),
		)
		return c.Status(fiber.StatusCreated).JSON(ev)
	})

	r.Post("/tracking/start", func(c *fiber.Ctx) error {
		if err := h.deps.Engine.Start(c.UserContext()); err != nil {
			return err
		}
		return c.JSON(h.deps.Engine.Status())
	})

	r.Post("/tracking/pause", func(c *fiber.Ctx) error {
		if err := h.deps.Engine.Pause(); err != nil {
			return err
		}
		return c.JSON(h.deps.Engine.Status())
	})

	r.Post("/tracking/resume", func(c *fiber.Ctx) error {
		if err := h.deps.Engine.Resume(); err != nil {
			return err
		}
		return c.JSON(h.deps.Engine.Status())
	})

	r.Post("/tracking/stop", func(c *fiber.Ctx) error {
		var req StopRequest
		if len(c.Body()) > 0 {
			if err := h.parse(c, &req); err != nil {
				return err
			}
		}
		stop := h.deps.Stop
		if stop == nil {
			stop = func(ctx context.Context, name string, save bool) (engine.StopResult, error) {
				return h.deps.Engine.Stop(ctx, func(engine.Summary) (string, bool) { return name, save })
			}
		}
		result, err := stop(c.UserContext(), req.Name, req.Save)
		if err != nil {
			return err
		}
		return c.JSON(result)
	})

	r.Post("/tracking/reset", func(c *fiber.Ctx) error {
		if err := h.deps.Engine.Reset(c.UserContext()); err != nil {
			return err
		}
		return c.JSON(h.deps.Engine.Status())
	})
}

// postFixes accepts one fix object or an array of them. Fixes are validated
// as a batch before any is published.
func (h *handlers) postFixes(c *fiber.Ctx) error {
	body := bytes.TrimSpace(c.Body())
	var batch []FixRequest
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &batch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	} else {
		var one FixRequest
		if err := json.Unmarshal(body, &one); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		batch = []FixRequest{one}
	}
	if len(batch) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fixes in request")
	}
	for i := range batch {
		if err := h.validate.Struct(batch[i]); err != nil {
			return err
		}
	}

	published := 0
	for _, req := range batch {
		if err := h.deps.Push.Publish(geo.Fix{Lat: req.Lat, Lng: req.Lng, AccuracyMeters: req.Accuracy}); err != nil {
			if published == 0 {
				return err
			}
			break
		}
		published++
	}
	return c.Status(fiber.StatusAccepted).JSON(FixResponse{Published: published})
}

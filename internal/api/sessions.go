package api

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"routekeeper/internal/export"
	"routekeeper/internal/sessions"
)

func registerSessionRoutes(r fiber.Router, h *handlers) {
	r.Get("/sessions", func(c *fiber.Ctx) error {
		list, err := h.deps.Sessions.List(c.UserContext())
		if err != nil {
			return err
		}
		out := make([]SessionSummary, 0, len(list))
		for i, s := range list {
			out = append(out, summarizeSession(i, s))
		}
		return c.JSON(out)
	})

	r.Get("/sessions/:ref", func(c *fiber.Ctx) error {
		view, err := h.resolve(c)
		if err != nil {
			return err
		}
		return c.JSON(SessionDetail{
			SessionSummary: summarizeSession(view.Index, view.Session),
			Route:          view.Session.Events,
		})
	})

	r.Get("/sessions/:ref/export/:format", h.exportSession)

	r.Get("/share/decode", func(c *fiber.Ctx) error {
		raw := c.Query("url")
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			return fiber.NewError(fiber.StatusBadRequest, "url or token query parameter required")
		}
		events, err := export.DecodeShareURL(raw, h.export.ShareParam)
		if err != nil {
			return err
		}
		return c.JSON(events)
	})
}

func (h *handlers) resolve(c *fiber.Ctx) (sessions.View, error) {
	ref, err := url.PathUnescape(c.Params("ref"))
	if err != nil {
		return sessions.View{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return h.deps.Sessions.Resolve(c.UserContext(), ref)
}

func (h *handlers) exportSession(c *fiber.Ctx) error {
	view, err := h.resolve(c)
	if err != nil {
		return err
	}
	events := view.Timeline.Events

	var buf bytes.Buffer
	switch format := c.Params("format"); format {
	case "json":
		if err := export.WriteJSON(&buf, events); err != nil {
			return err
		}
		c.Type("json")
	case "gpx":
		err := export.WriteGPX(&buf, events, export.GPXOptions{Creator: h.export.GPXCreator, Name: view.Session.Name})
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/gpx+xml")
	case "geojson":
		if err := export.WriteGeoJSON(&buf, events, view.Session.Name, view.Timeline.TotalDistanceKm); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
	case "share":
		link, err := export.ShareURL(h.export.ShareBaseURL, h.export.ShareParam, events)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"url": link})
	default:
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown export format %q", format))
	}
	return c.Send(buf.Bytes())
}

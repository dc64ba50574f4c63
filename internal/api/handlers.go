package api

import (
	"errors"
	"io/fs"

	"github.com/gofiber/fiber/v2"

	"route-replay/internal/playback"
	"route-replay/internal/replay"
)

func RegisterRoutes(r fiber.Router, mgr *replay.Manager) {
	r.Post("/", func(c *fiber.Ctx) error {
		var body struct {
			VehicleID string `json:"vehicle_id"`
			Date      string `json:"date"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if body.VehicleID == "" || body.Date == "" {
			return fiber.NewError(fiber.StatusBadRequest, "vehicle_id and date required")
		}
		s, err := mgr.Open(c.UserContext(), body.VehicleID, body.Date)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(s.Summary())
	})

	r.Get("/", func(c *fiber.Ctx) error {
		sessions := mgr.List()
		out := make([]replay.Summary, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, s.Summary())
		}
		return c.JSON(out)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		s, err := mgr.Get(c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(s.Summary())
	})

	r.Get("/:id/stops", func(c *fiber.Ctx) error {
		s, err := mgr.Get(c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(s.Stops)
	})

	r.Get("/:id/path", func(c *fiber.Ctx) error {
		s, err := mgr.Get(c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(s.Log)
	})

	r.Get("/:id/frame", func(c *fiber.Ctx) error {
		s, err := mgr.Get(c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(s.Frame())
	})

	control := map[string]func(*playback.Controller){
		"play":  (*playback.Controller).Play,
		"pause": (*playback.Controller).Pause,
		"reset": (*playback.Controller).Reset,
		"start": (*playback.Controller).SkipToStart,
		"end":   (*playback.Controller).SkipToEnd,
	}
	for name, fn := range control {
		fn := fn
		r.Post("/:id/"+name, func(c *fiber.Ctx) error {
			s, err := mgr.Get(c.Params("id"))
			if err != nil {
				return toHTTPError(err)
			}
			fn(s.Controller())
			return c.JSON(s.Frame())
		})
	}

	r.Post("/:id/seek", func(c *fiber.Ctx) error {
		var body struct {
			Index *int `json:"index"`
		}
		if err := c.BodyParser(&body); err != nil || body.Index == nil {
			return fiber.NewError(fiber.StatusBadRequest, "index required")
		}
		s, err := mgr.Get(c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		if err := s.Controller().Seek(*body.Index); err != nil {
			return toHTTPError(err)
		}
		return c.JSON(s.Frame())
	})

	r.Post("/:id/speed", func(c *fiber.Ctx) error {
		var body struct {
			Multiplier *float64 `json:"multiplier"`
		}
		if err := c.BodyParser(&body); err != nil || body.Multiplier == nil {
			return fiber.NewError(fiber.StatusBadRequest, "multiplier required")
		}
		s, err := mgr.Get(c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		if err := s.Controller().SetSpeedMultiplier(*body.Multiplier); err != nil {
			return toHTTPError(err)
		}
		return c.JSON(s.Summary())
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := mgr.CloseSession(c.Params("id")); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, replay.ErrSessionNotFound), errors.Is(err, fs.ErrNotExist):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, replay.ErrInvalidRequest), errors.Is(err, playback.ErrInvalidArgument):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

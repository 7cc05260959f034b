package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-panel/internal/config"
	"github.com/i474232898/weather-panel/internal/connection"
	"github.com/i474232898/weather-panel/internal/store"
	"github.com/i474232898/weather-panel/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, ctrl *connection.Controller, state *store.HostState) {
	v1 := app.Group("/api/v1")

	v1.Get("/status", func(c *fiber.Ctx) error {
		report := state.Status()
		resp := fiber.Map{
			"status":    report.Status,
			"message":   report.Message,
			"updatedAt": report.UpdatedAt,
		}
		if sched, ok := ctrl.Schedule(); ok {
			resp["schedule"] = sched
		}
		return c.JSON(resp)
	})

	v1.Get("/definitions", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"definitions": state.Definitions()})
	})

	v1.Get("/variables", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"variables": state.Variables()})
	})

	v1.Get("/variables/:id", func(c *fiber.Ctx) error {
		var req variableQuery
		req.ID = c.Params("id")
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		value, err := state.Variable(req.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "unknown variable "+req.ID)
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read variable")
		}
		return c.JSON(fiber.Map{"id": req.ID, "value": value})
	})

	v1.Get("/feedback/icon", func(c *fiber.Ctx) error {
		return c.JSON(ctrl.IconFeedback())
	})

	v1.Post("/actions/refresh", func(c *fiber.Ctx) error {
		issued := ctrl.Refresh()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"issued": issued})
	})

	v1.Put("/config", func(c *fiber.Ctx) error {
		var req configRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid config body")
		}

		// An invalid config still replaces the running one and leaves the
		// connection in bad_config until a valid one arrives.
		if err := ctrl.ConfigChanged(req.toConnection()); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		status, message := ctrl.Status()
		return c.JSON(fiber.Map{"status": status, "message": message})
	})
}

// variableQuery holds path parameters for the single-variable endpoint.
type variableQuery struct {
	ID string `validate:"required,max=64"`
}

// configRequest is the body of PUT /config.
type configRequest struct {
	APIKey         string `json:"apiKey"`
	Location       string `json:"location"`
	Units          string `json:"units"`
	Timezone       string `json:"timezone"`
	RefreshMinutes int    `json:"refreshMinutes"`
}

func (r configRequest) toConnection() config.Connection {
	return config.Connection{
		APIKey:         r.APIKey,
		Location:       r.Location,
		Units:          weather.Units(r.Units),
		Timezone:       weather.TimezoneMode(r.Timezone),
		RefreshMinutes: r.RefreshMinutes,
	}
}

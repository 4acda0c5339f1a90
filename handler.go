package main

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/iedon/gameping-agent/render"
)

type statusHandler struct {
	recorder *render.Recorder
	process  string
	kernel   string
	started  time.Time
}

func newStatusApp(h *statusHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      SERVER_NAME,
		ServerHeader: SERVER_SIGNATURE,
	})
	initRouter(app, h)
	return app
}

func initRouter(app *fiber.App, h *statusHandler) {
	app.Get("/", h.index)
	app.Get("/status", h.status)
}

func (h *statusHandler) index(c fiber.Ctx) error {
	return c.JSON(AgentApiResponse{
		Code:    fiber.StatusOK,
		Message: "ok",
		Data: AgentInfo{
			Version: SERVER_SIGNATURE,
			Kernel:  h.kernel,
			Process: h.process,
			Uptime:  int64(time.Since(h.started).Seconds()),
		},
	})
}

func (h *statusHandler) status(c fiber.Ctx) error {
	report, ok := h.recorder.Latest()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(AgentApiResponse{
			Code:    fiber.StatusServiceUnavailable,
			Message: "no report yet",
		})
	}
	return c.JSON(AgentApiResponse{
		Code:    fiber.StatusOK,
		Message: "ok",
		Data:    report,
	})
}

package router

import (
	apiv1 "github.com/FreightFox/FreightFox/internal/api/v1"
	"github.com/FreightFox/FreightFox/internal/pkg/engine"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
	engine *engine.Engine
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "FreightFox sync engine",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(h.engine)
	apiv1.RegisterHandlers(v1, apiServer)
}

func NewApiRouter(e *engine.Engine) *ApiRouter {
	return &ApiRouter{engine: e}
}

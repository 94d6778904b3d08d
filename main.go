package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/FreightFox/FreightFox/internal/pkg/cache"
	"github.com/FreightFox/FreightFox/internal/pkg/engine"
	"github.com/FreightFox/FreightFox/internal/pkg/env"
	"github.com/FreightFox/FreightFox/internal/pkg/router"
)

func main() {
	app, eng := NewApplication()

	// graceful shutdown: stop the engine so the final snapshot lands
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		eng.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *engine.Engine) {
	env.SetupEnvFile()
	cache.SetupCache()

	eng := engine.NewFromEnv()
	eng.Start()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "FreightFox Sync Engine",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app, eng)

	return app, eng
}

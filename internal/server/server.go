package server

import (
	"time"

	"github.com/taskline/taskline/internal/controllers"
	"github.com/taskline/taskline/internal/version"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

type HTTPServerDependencies struct {
	AllowedOrigins  string
	AgentController *controllers.AgentController
}

func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName: "taskline",
	})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     deps.AllowedOrigins,
		AllowCredentials: true,
	}))
	router.Use(logger.New())

	router.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "taskline",
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	router.Post("/agent", deps.AgentController.StreamAgent)
	router.Get("/conversations", deps.AgentController.ListConversations)
	router.Get("/conversations/:conversationID", deps.AgentController.GetConversation)

	return router
}

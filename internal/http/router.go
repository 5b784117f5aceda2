package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/course-marketplace/storefront/internal/config"
	"github.com/course-marketplace/storefront/internal/http/handlers"
	"github.com/course-marketplace/storefront/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	walletHandler *handlers.WalletHandler,
	courseHandler *handlers.CourseHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))

	// Wallet session
	api.Post("/wallet/connect", walletHandler.Connect)
	api.Delete("/wallet", walletHandler.Disconnect)
	api.Get("/wallet", walletHandler.GetWallet)
	api.Post("/wallet/network", walletHandler.SwitchNetwork)
	api.Post("/wallet/refresh", walletHandler.Refresh)

	// Courses
	api.Get("/courses", courseHandler.ListCourses)
	api.Get("/courses/purchased", courseHandler.PurchasedCourses)
	api.Get("/courses/:id", courseHandler.GetCourse)
	api.Post("/courses/:id/purchase", courseHandler.Purchase)
	api.Post("/courses/sync", courseHandler.Sync)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}

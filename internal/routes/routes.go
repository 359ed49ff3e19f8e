package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/sessiongate/internal/config"
	"github.com/Ananth-NQI/sessiongate/internal/handlers"
	"github.com/Ananth-NQI/sessiongate/internal/middleware"
	"github.com/Ananth-NQI/sessiongate/internal/services"
)

// Version is reported by / and /health
const Version = "1.0.0"

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, sessions *services.SessionManager, holder *config.Holder) {
	cfg := holder.Current()
	messages := handlers.NewMessageHandler(sessions, holder)
	health := handlers.NewHealthHandler(Version, cfg.Store.Driver, sessions)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "sessiongate",
			"version": Version,
			"endpoints": fiber.Map{
				"health":   "/health",
				"webhook":  "/webhook/whatsapp",
				"resolve":  "/api/messages/resolve",
				"sessions": "/api/sessions",
			},
		})
	})

	app.Get("/health", health.Check)

	// ========== API ROUTES ==========
	api := app.Group("/api")
	api.Post("/messages/resolve", messages.Resolve)
	api.Get("/sessions", messages.ListSessions)
	api.Get("/sessions/stats", messages.GetStats)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// validation can only be toggled by a restart
	if cfg.ValidateWebhooks() {
		authToken := func() string { return holder.Current().Server.TwilioAuthToken }
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(authToken), messages.HandleWebhook)
	} else {
		webhooks.Post("/whatsapp", messages.HandleWebhook)
		log.Println("⚠️  WhatsApp webhook validation DISABLED")
	}
}

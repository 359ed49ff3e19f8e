package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/sessiongate/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	Driver   string
	sessions *services.SessionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, driver string, sessions *services.SessionManager) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		Driver:   driver,
		sessions: sessions,
	}
}

// Check returns the health status of the service; an unreadable store is unhealthy
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	statusCode := fiber.StatusOK
	if _, err := h.sessions.ListSessions(c.UserContext()); err != nil {
		status = "unhealthy"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"service": "sessiongate",
		"version": h.Version,
		"store": fiber.Map{
			"driver": h.Driver,
			"path":   h.sessions.StorePath(),
		},
	})
}

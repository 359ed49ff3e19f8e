package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/sessiongate/internal/models"
	"github.com/Ananth-NQI/sessiongate/internal/services"
	"github.com/Ananth-NQI/sessiongate/internal/storage"
	"github.com/Ananth-NQI/sessiongate/internal/utils"
)

// MessageHandler resolves sessions for inbound messages
type MessageHandler struct {
	sessions *services.SessionManager
	configs  services.ConfigSource
	locks    *utils.KeyedMutex
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(sessions *services.SessionManager, configs services.ConfigSource) *MessageHandler {
	return &MessageHandler{
		sessions: sessions,
		configs:  configs,
		locks:    utils.NewKeyedMutex(),
	}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid  string `form:"MessageSid"`
	AccountSid  string `form:"AccountSid"`
	From        string `form:"From"` // WhatsApp number (whatsapp:+919876543210)
	To          string `form:"To"`   // Your Twilio number
	Body        string `form:"Body"` // Message text
	WaId        string `form:"WaId"` // sender number without prefix or +
	ProfileName string `form:"ProfileName"`
	NumMedia    string `form:"NumMedia"`
}

// HandleWebhook resolves the session for an incoming WhatsApp message
func (h *MessageHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// status callbacks carry no sender
	if payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("📱 WhatsApp Message from %s: %s", payload.From, payload.Body)

	sender := payload.WaId
	if sender == "" {
		sender = utils.StripWhatsAppPrefix(payload.From)
	}
	msg := &models.MsgContext{
		From:       payload.From,
		To:         payload.To,
		Surface:    models.SurfaceWhatsApp,
		Body:       payload.Body,
		SenderE164: sender,
		ChatType:   string(models.ChatTypeDirect),
		SenderName: payload.ProfileName,
		MessageID:  payload.MessageSid,
	}
	return h.resolve(c, msg, h.configs.Current().CommandsAuthorized())
}

// ResolveRequest is a message from any surface plus the platform command gate
type ResolveRequest struct {
	models.MsgContext
	CommandAuthorized *bool `json:"command_authorized"`
}

// Resolve resolves the session for a JSON-described message
func (h *MessageHandler) Resolve(c *fiber.Ctx) error {
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.From) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from is required",
		})
	}

	authorized := h.configs.Current().CommandsAuthorized()
	if req.CommandAuthorized != nil {
		authorized = *req.CommandAuthorized
	}
	msg := req.MsgContext
	return h.resolve(c, &msg, authorized)
}

func (h *MessageHandler) resolve(c *fiber.Ctx, msg *models.MsgContext, authorized bool) error {
	// every store is one document, so load-modify-save runs once per store path at a time
	unlock := h.locks.Lock(h.sessions.StorePath())
	defer unlock()

	res, err := h.sessions.Resolve(c.UserContext(), msg, authorized)
	if err != nil && !errors.Is(err, storage.ErrSave) {
		log.Printf("❌ Failed to resolve session for %s: %v", msg.From, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resolve session",
		})
	}

	if res.IsNewSession {
		log.Printf("✅ %s → new session %s", res.SessionKey, res.SessionID)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"resolution": res,
		"persisted":  res.Persisted,
	})
}

// ListSessions returns every stored session, newest first
func (h *MessageHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.sessions.ListSessions(c.UserContext())
	if err != nil {
		log.Printf("❌ Failed to list sessions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sessions",
		})
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetStats returns session counts
func (h *MessageHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.sessions.GetSessionStats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch stats",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

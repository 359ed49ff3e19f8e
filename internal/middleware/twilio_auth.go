package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries Twilio's request signature
const SignatureHeader = "X-Twilio-Signature"

// ValidateTwilioSignature validates that the webhook request is from Twilio.
// authToken is read per request so a reloaded token takes effect immediately.
func ValidateTwilioSignature(authToken func() string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := c.Get(SignatureHeader)
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}

		token := authToken()
		if token == "" {
			// don't expose this to the client
			log.Println("❌ TWILIO_AUTH_TOKEN not set, rejecting webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		validator := client.NewRequestValidator(token)
		if !validator.Validate(fullURL(c), params, signature) {
			log.Printf("🚫 Invalid Twilio signature for %s", c.OriginalURL())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// fullURL is the URL Twilio signed: scheme, host, path and query
func fullURL(c *fiber.Ctx) string {
	return c.BaseURL() + c.OriginalURL()
}

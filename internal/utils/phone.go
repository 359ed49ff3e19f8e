package utils

import "strings"

// WhatsAppPrefix is the transport prefix Twilio puts on WhatsApp addresses
const WhatsAppPrefix = "whatsapp:"

// StripWhatsAppPrefix removes a leading whatsapp: transport prefix
func StripWhatsAppPrefix(addr string) string {
	return strings.TrimPrefix(addr, WhatsAppPrefix)
}

// NormalizeE164 converts a raw identifier to +<digits> form.
// Returns "" when the input carries no digits at all.
func NormalizeE164(raw string) string {
	s := strings.TrimSpace(StripWhatsAppPrefix(strings.TrimSpace(raw)))

	var b strings.Builder
	b.Grow(len(s) + 1)
	b.WriteByte('+')
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			digits++
		}
	}
	if digits == 0 {
		return ""
	}
	return b.String()
}

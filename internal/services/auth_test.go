package services

import (
	"testing"

	"github.com/Ananth-NQI/sessiongate/internal/config"
	"github.com/Ananth-NQI/sessiongate/internal/models"
)

func allowFrom(entries ...string) *config.Config {
	cfg := &config.Config{}
	cfg.WhatsApp.AllowFrom = entries
	return cfg
}

func TestResolveCommandAuthorization(t *testing.T) {
	owner := &models.MsgContext{
		From:       "whatsapp:+15551234567",
		To:         "whatsapp:+15550001111",
		SenderE164: "+1 (555) 123-4567",
	}
	stranger := &models.MsgContext{
		From:       "whatsapp:+15559999999",
		To:         "whatsapp:+15550001111",
		SenderE164: "+15559999999",
	}
	telegram := &models.MsgContext{From: "telegram:42", To: "telegram:bot", Surface: models.SurfaceTelegram}

	cases := []struct {
		name              string
		msg               *models.MsgContext
		cfg               *config.Config
		commandAuthorized bool
		want              bool
		owners            int
	}{
		{"no config", owner, nil, true, true, 0},
		{"empty allow-list", stranger, allowFrom(), true, true, 0},
		{"empty allow-list gate closed", stranger, allowFrom(), false, false, 0},
		{"blank entries only", stranger, allowFrom("  ", ""), true, true, 0},
		{"wildcard", stranger, allowFrom("*"), true, true, 0},
		{"wildcard among numbers", stranger, allowFrom("+15551234567", " * "), true, true, 0},
		{"owner", owner, allowFrom("+15551234567"), true, true, 1},
		{"owner gate closed", owner, allowFrom("+15551234567"), false, false, 1},
		{"non-owner", stranger, allowFrom("+15551234567"), true, false, 1},
		{"malformed entry dropped", owner, allowFrom("not-a-number", "+15551234567"), true, true, 1},
		{"only malformed entries", stranger, allowFrom("abc"), true, true, 0},
		{"other surface ignores allow-list", telegram, allowFrom("+15551234567"), true, true, 0},
		{"other surface gate closed", telegram, allowFrom("+15551234567"), false, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveCommandAuthorization(tc.msg, tc.cfg, tc.commandAuthorized)
			if got.IsAuthorizedSender != tc.want {
				t.Fatalf("IsAuthorizedSender = %v, want %v (%+v)", got.IsAuthorizedSender, tc.want, got)
			}
			if len(got.OwnerList) != tc.owners {
				t.Fatalf("OwnerList = %v, want %d entries", got.OwnerList, tc.owners)
			}
		})
	}
}

func TestResolveCommandAuthorizationFields(t *testing.T) {
	msg := &models.MsgContext{
		From:       "whatsapp:+15551234567",
		To:         "whatsapp:+15550001111",
		SenderE164: "15551234567",
	}
	got := ResolveCommandAuthorization(msg, allowFrom("1-555-123-4567"), true)

	if !got.IsWhatsAppSurface {
		t.Fatal("expected whatsapp surface from address prefix")
	}
	if got.From != "+15551234567" || got.To != "+15550001111" {
		t.Fatalf("prefix not stripped: from=%q to=%q", got.From, got.To)
	}
	if got.SenderE164 != "+15551234567" {
		t.Fatalf("SenderE164 = %q", got.SenderE164)
	}
	if len(got.OwnerList) != 1 || got.OwnerList[0] != "+15551234567" {
		t.Fatalf("OwnerList = %v", got.OwnerList)
	}
	if !got.IsAuthorizedSender {
		t.Fatal("owner should be authorized")
	}
}

func TestResolveCommandAuthorizationMissingSender(t *testing.T) {
	msg := &models.MsgContext{From: "whatsapp:+15551234567", Surface: models.SurfaceWhatsApp}
	got := ResolveCommandAuthorization(msg, allowFrom("+15551234567"), true)
	if got.IsAuthorizedSender {
		t.Fatal("a sender without a normalized number cannot match the owner list")
	}
}

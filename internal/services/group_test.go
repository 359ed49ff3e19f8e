package services

import (
	"testing"

	"github.com/Ananth-NQI/sessiongate/internal/config"
	"github.com/Ananth-NQI/sessiongate/internal/models"
)

func TestResolveGroupSessionKey(t *testing.T) {
	cases := []struct {
		name      string
		msg       models.MsgContext
		wantNil   bool
		key       string
		legacyKey string
		surface   models.Surface
		chatType  models.ChatType
		id        string
	}{
		{
			name:    "direct whatsapp",
			msg:     models.MsgContext{From: "whatsapp:+15551234567", Surface: models.SurfaceWhatsApp},
			wantNil: true,
		},
		{
			name:    "empty from",
			msg:     models.MsgContext{ChatType: "group"},
			wantNil: true,
		},
		{
			name:      "bare whatsapp group id",
			msg:       models.MsgContext{From: "120363@g.us"},
			key:       "whatsapp:group:120363@g.us",
			legacyKey: "group:120363@g.us",
			surface:   models.SurfaceWhatsApp,
			chatType:  models.ChatTypeGroup,
			id:        "120363@g.us",
		},
		{
			name:      "legacy prefix",
			msg:       models.MsgContext{From: "group:120363@g.us"},
			key:       "whatsapp:group:120363@g.us",
			legacyKey: "group:120363@g.us",
			surface:   models.SurfaceWhatsApp,
			chatType:  models.ChatTypeGroup,
			id:        "120363@g.us",
		},
		{
			name:     "discord channel",
			msg:      models.MsgContext{From: "discord:channel:998877"},
			key:      "discord:channel:998877",
			surface:  models.SurfaceDiscord,
			chatType: models.ChatTypeRoom,
			id:       "998877",
		},
		{
			name:     "telegram surface prefix only",
			msg:      models.MsgContext{From: "telegram:-100123", ChatType: "group"},
			key:      "telegram:group:-100123",
			surface:  models.SurfaceTelegram,
			chatType: models.ChatTypeGroup,
			id:       "-100123",
		},
		{
			name:      "surface from context",
			msg:       models.MsgContext{From: "group:abc", Surface: "Slack"},
			key:       "slack:group:abc",
			legacyKey: "group:abc",
			surface:   models.SurfaceSlack,
			chatType:  models.ChatTypeGroup,
			id:        "abc",
		},
		{
			name:     "no surface anywhere",
			msg:      models.MsgContext{From: "group:abc"},
			key:      "group:abc",
			chatType: models.ChatTypeGroup,
			id:       "abc",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveGroupSessionKey(&tc.msg)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a group resolution")
			}
			if got.Key != tc.key || got.LegacyKey != tc.legacyKey || got.Surface != tc.surface ||
				got.ChatType != tc.chatType || got.ID != tc.id {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestResolveSessionKey(t *testing.T) {
	direct := &models.MsgContext{From: "whatsapp:+1 555 123 4567", Surface: models.SurfaceWhatsApp}
	group := &models.MsgContext{From: "120363@g.us"}
	groupRes := ResolveGroupSessionKey(group)

	if got := ResolveSessionKey(models.ScopeGlobal, direct, nil, "main"); got != "main" {
		t.Fatalf("global = %q", got)
	}
	if got := ResolveSessionKey(models.ScopeGlobal, group, groupRes, "main"); got != "main" {
		t.Fatalf("global group = %q", got)
	}
	if got := ResolveSessionKey(models.ScopePerSender, direct, nil, "main"); got != "+15551234567" {
		t.Fatalf("per-sender direct = %q", got)
	}
	if got := ResolveSessionKey(models.ScopePerSender, group, groupRes, "main"); got != "whatsapp:group:120363@g.us" {
		t.Fatalf("per-sender group = %q", got)
	}
	if got := ResolveSessionKey(models.ScopePerGroup, direct, nil, "main"); got != "main" {
		t.Fatalf("per-group direct = %q", got)
	}
	if got := ResolveSessionKey(models.ScopePerGroup, group, groupRes, "main"); got != "whatsapp:group:120363@g.us" {
		t.Fatalf("per-group group = %q", got)
	}

	tg := &models.MsgContext{From: "Telegram:42", Surface: models.SurfaceTelegram}
	if got := ResolveSessionKey(models.ScopePerSender, tg, nil, "main"); got != "telegram:42" {
		t.Fatalf("telegram sender = %q", got)
	}
	withE164 := &models.MsgContext{From: "whatsapp:+1555", SenderE164: "+1 666", Surface: models.SurfaceWhatsApp}
	if got := ResolveSessionKey(models.ScopePerSender, withE164, nil, "main"); got != "+1666" {
		t.Fatalf("sender e164 should win, got %q", got)
	}
	if got := ResolveSessionKey(models.ScopePerSender, &models.MsgContext{}, nil, "main"); got != "unknown" {
		t.Fatalf("empty sender = %q", got)
	}
}

func TestBuildGroupDisplayName(t *testing.T) {
	cases := []struct {
		name string
		p    GroupDisplayParams
		want string
	}{
		{"subject", GroupDisplayParams{Surface: "whatsapp", Subject: "Family Chat", ID: "1@g.us"}, "whatsapp:g-family-chat"},
		{"room and space", GroupDisplayParams{Surface: "discord", Room: "#general", Space: "Guild"}, "discord:guild#general"},
		{"room without hash", GroupDisplayParams{Surface: "slack", Room: "ops", Space: "acme"}, "slack:acme#ops"},
		{"room only", GroupDisplayParams{Surface: "slack", Room: "#ops"}, "slack:#ops"},
		{"id fallback", GroupDisplayParams{Surface: "telegram", ID: "-100123"}, "telegram:g-100123"},
		{"key fallback", GroupDisplayParams{Key: "group:abc"}, "group:g-group-abc"},
		{"subject hash without room", GroupDisplayParams{Surface: "whatsapp", Subject: "#news"}, "whatsapp:g-news"},
		{"nothing usable", GroupDisplayParams{Surface: "signal", Subject: "✨✨✨"}, "signal"},
		{"non-ascii id", GroupDisplayParams{Surface: "whatsapp", ID: "ÄÖÜ ÄÖÜ ÄÖÜ ÄÖÜ ÄÖÜ"}, "whatsapp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildGroupDisplayName(tc.p); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestStripStructuralPrefixes(t *testing.T) {
	cases := map[string]string{
		"[Dec 4 17:35] /new":                                  "/new",
		"[WhatsApp +1555 Dec 4] Alice: /reset hi":             "/reset hi",
		"history\n[Current message - respond to this]\n/new x": "/new x",
		"  plain   text  ":                                    "plain text",
		"/new":                                                "/new",
	}
	for in, want := range cases {
		if got := StripStructuralPrefixes(in); got != want {
			t.Errorf("StripStructuralPrefixes(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripMentions(t *testing.T) {
	cfg := &config.Config{}
	cfg.Routing.GroupChat.MentionPatterns = []string{`@bot\b`, `(`}
	msg := &models.MsgContext{To: "whatsapp:+15550001111"}

	cases := map[string]string{
		"@bot /new":          "/new",
		"@BOT /reset please": "/reset please",
		"@+15550001111 /new": "/new",
		"+15550001111 /new":  "/new",
		"@4915123456 /new":   "/new",
		"hello   there":      "hello there",
	}
	for in, want := range cases {
		if got := StripMentions(in, msg, cfg); got != want {
			t.Errorf("StripMentions(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripMentionsFollowsReloadedPatterns(t *testing.T) {
	msg := &models.MsgContext{}
	before := &config.Config{}
	before.Routing.GroupChat.MentionPatterns = []string{`@old\b`}
	after := &config.Config{}
	after.Routing.GroupChat.MentionPatterns = []string{`@new\b`}

	if got := StripMentions("@old hi", msg, before); got != "hi" {
		t.Fatalf("got %q", got)
	}
	if got := StripMentions("@old hi", msg, after); got != "@old hi" {
		t.Fatalf("stale pattern applied after reload: %q", got)
	}
	if got := StripMentions("@new hi", msg, after); got != "hi" {
		t.Fatalf("got %q", got)
	}

	mentionCache.Lock()
	defer mentionCache.Unlock()
	if len(mentionCache.compiled) != 1 || mentionCache.compiled[0].String() != `(?i)@new\b` {
		t.Fatalf("cache holds %v, want only the current pattern", mentionCache.compiled)
	}
}

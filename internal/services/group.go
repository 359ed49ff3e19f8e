package services

import (
	"regexp"
	"strings"

	"github.com/Ananth-NQI/sessiongate/internal/models"
	"github.com/Ananth-NQI/sessiongate/internal/utils"
)

const (
	legacyGroupPrefix = "group:"
	whatsAppGroupHost = "@g.us"
	unknownSenderKey  = "unknown"
)

// ResolveGroupSessionKey derives the group identity of msg, or nil for direct chats.
//
// Accepted From shapes: <surface>:<group|channel>:<id>, <surface>:<id>,
// <group|channel>:<id>, group:<...> (legacy) and bare WhatsApp <id>@g.us.
func ResolveGroupSessionKey(msg *models.MsgContext) *models.GroupKeyResolution {
	from := strings.TrimSpace(msg.From)
	if from == "" {
		return nil
	}
	isGroup := models.ParseChatType(msg.ChatType) == models.ChatTypeGroup ||
		strings.HasPrefix(from, legacyGroupPrefix) ||
		strings.Contains(from, whatsAppGroupHost) ||
		strings.Contains(from, ":group:") ||
		strings.Contains(from, ":channel:")
	if !isGroup {
		return nil
	}

	hasLegacyPrefix := strings.HasPrefix(from, legacyGroupPrefix)
	raw := from
	if hasLegacyPrefix {
		raw = strings.TrimSpace(strings.TrimPrefix(from, legacyGroupPrefix))
	}

	var parts []string
	for _, p := range strings.Split(raw, ":") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	var surface models.Surface
	var kind, id string
	switch {
	case len(parts) >= 3 && models.ParseSurface(parts[0]).Known() && (parts[1] == "group" || parts[1] == "channel"):
		surface = models.ParseSurface(parts[0])
		kind = parts[1]
		id = strings.Join(parts[2:], ":")
	case len(parts) >= 2 && models.ParseSurface(parts[0]).Known():
		surface = models.ParseSurface(parts[0])
		id = strings.Join(parts[1:], ":")
	case len(parts) >= 2 && (parts[0] == "group" || parts[0] == "channel"):
		kind = parts[0]
		id = strings.Join(parts[1:], ":")
	default:
		id = raw
	}
	if id == "" {
		id = raw
	}
	if id == "" {
		id = from
	}

	if surface == "" {
		surface = models.ParseSurface(string(msg.Surface))
	}
	if surface == "" && strings.Contains(raw, whatsAppGroupHost) {
		surface = models.SurfaceWhatsApp
	}
	if surface == "" {
		return &models.GroupKeyResolution{
			ID:       id,
			Key:      legacyGroupPrefix + id,
			ChatType: models.ChatTypeGroup,
		}
	}

	resolvedKind := "group"
	chatType := models.ChatTypeGroup
	if kind == "channel" {
		resolvedKind = "channel"
		chatType = models.ChatTypeRoom
	}

	res := &models.GroupKeyResolution{
		ID:       id,
		Key:      string(surface) + ":" + resolvedKind + ":" + id,
		Surface:  surface,
		ChatType: chatType,
	}
	if hasLegacyPrefix || strings.Contains(raw, whatsAppGroupHost) {
		res.LegacyKey = legacyGroupPrefix + id
	}
	return res
}

// ResolveSessionKey computes the store key for msg under scope.
// Groups always get their group key unless the scope is global.
func ResolveSessionKey(scope models.SessionScope, msg *models.MsgContext, group *models.GroupKeyResolution, mainKey string) string {
	switch scope {
	case models.ScopeGlobal:
		return mainKey
	case models.ScopePerGroup:
		if group != nil {
			return group.Key
		}
		return mainKey
	case models.ScopePerSender:
		if group != nil {
			return group.Key
		}
		return senderKey(msg)
	default:
		return senderKey(msg)
	}
}

// senderKey is the E.164 number for WhatsApp or bare numbers, else the raw address
func senderKey(msg *models.MsgContext) string {
	from := strings.TrimSpace(msg.From)
	surface := models.ParseSurface(string(msg.Surface))
	onWhatsApp := surface == models.SurfaceWhatsApp || surface == "" || strings.HasPrefix(from, utils.WhatsAppPrefix)

	if onWhatsApp && !strings.Contains(utils.StripWhatsAppPrefix(from), ":") {
		if n := utils.NormalizeE164(msg.SenderE164); n != "" {
			return n
		}
		if n := utils.NormalizeE164(from); n != "" {
			return n
		}
	}
	if from != "" {
		return strings.ToLower(from)
	}
	return unknownSenderKey
}

var (
	unsafeLabelChars = regexp.MustCompile(`[^a-z0-9#@._+\-]+`)
	repeatedDashes   = regexp.MustCompile(`-{2,}`)
)

// GroupDisplayParams feeds BuildGroupDisplayName
type GroupDisplayParams struct {
	Surface models.Surface
	Subject string
	Room    string
	Space   string
	ID      string
	Key     string
}

// BuildGroupDisplayName renders a short human label such as "discord:team#general"
func BuildGroupDisplayName(p GroupDisplayParams) string {
	surfaceKey := strings.ToLower(strings.TrimSpace(string(p.Surface)))
	if surfaceKey == "" {
		surfaceKey = "group"
	}
	room := strings.TrimSpace(p.Room)
	space := strings.TrimSpace(p.Space)
	subject := strings.TrimSpace(p.Subject)

	var detail string
	switch {
	case room != "" && space != "":
		sep := "#"
		if strings.HasPrefix(room, "#") {
			sep = ""
		}
		detail = space + sep + room
	case room != "":
		detail = room
	case subject != "":
		detail = subject
	default:
		detail = space
	}

	fallbackID := strings.TrimSpace(p.ID)
	if fallbackID == "" {
		fallbackID = p.Key
	}
	rawToken := detail
	if rawToken == "" {
		rawToken = fallbackID
	}

	token := normalizeGroupLabel(rawToken)
	if token == "" {
		token = normalizeGroupLabel(shortenGroupID(rawToken))
	}
	if room == "" && strings.HasPrefix(token, "#") {
		token = strings.TrimLeft(token, "#")
	}
	if token != "" && !strings.HasPrefix(token, "@") && !strings.HasPrefix(token, "#") &&
		!strings.HasPrefix(token, "g-") && !strings.Contains(token, "#") {
		token = "g-" + token
	}
	if token == "" {
		return surfaceKey
	}
	return surfaceKey + ":" + token
}

func normalizeGroupLabel(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Join(strings.Fields(s), "-")
	s = unsafeLabelChars.ReplaceAllString(s, "-")
	s = repeatedDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-.")
}

func shortenGroupID(raw string) string {
	r := []rune(strings.TrimSpace(raw))
	if len(r) <= 14 {
		return string(r)
	}
	return string(r[:6]) + "..." + string(r[len(r)-4:])
}

package models

import "strings"

// Surface identifies the messaging platform a message arrived on
type Surface string

const (
	SurfaceWhatsApp Surface = "whatsapp"
	SurfaceTelegram Surface = "telegram"
	SurfaceDiscord  Surface = "discord"
	SurfaceSlack    Surface = "slack"
	SurfaceSignal   Surface = "signal"
	SurfaceIMessage Surface = "imessage"
	SurfaceWebChat  Surface = "webchat"
)

// ParseSurface lower-cases and trims a raw surface name.
// Unknown names are kept so they still show up in keys and display names.
func ParseSurface(raw string) Surface {
	return Surface(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether the surface is one we have group-key rules for
func (s Surface) Known() bool {
	switch s {
	case SurfaceWhatsApp, SurfaceTelegram, SurfaceDiscord, SurfaceSlack,
		SurfaceSignal, SurfaceIMessage, SurfaceWebChat:
		return true
	default:
		return false
	}
}

// IsRoomBased reports whether group subjects on this surface may name a #room
func (s Surface) IsRoomBased() bool {
	switch s {
	case SurfaceDiscord, SurfaceSlack:
		return true
	case SurfaceWhatsApp, SurfaceTelegram, SurfaceSignal, SurfaceIMessage, SurfaceWebChat:
		return false
	default:
		return false
	}
}

// ChatType tags a conversation as direct, group or room
type ChatType string

const (
	ChatTypeUnset  ChatType = ""
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
	ChatTypeRoom   ChatType = "room"
)

// ParseChatType maps a raw upstream tag onto a ChatType; unrecognised tags are unset
func ParseChatType(raw string) ChatType {
	switch ChatType(strings.ToLower(strings.TrimSpace(raw))) {
	case ChatTypeDirect:
		return ChatTypeDirect
	case ChatTypeGroup:
		return ChatTypeGroup
	case ChatTypeRoom:
		return ChatTypeRoom
	default:
		return ChatTypeUnset
	}
}

// MsgContext is one inbound message event as handed over by ingestion
type MsgContext struct {
	From         string  `json:"from"` // may carry a transport prefix, e.g. whatsapp:+15551234567
	To           string  `json:"to"`
	Surface      Surface `json:"surface"`
	Body         string  `json:"body"`
	SenderE164   string  `json:"sender_e164"`
	ChatType     string  `json:"chat_type"` // raw tag from upstream
	GroupSubject string  `json:"group_subject,omitempty"`
	GroupSpace   string  `json:"group_space,omitempty"`
	GroupRoom    string  `json:"group_room,omitempty"`

	SenderName string `json:"sender_name,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
}

// TemplateContext is the message context augmented with session data for the reply pipeline
type TemplateContext struct {
	MsgContext
	BodyStripped string `json:"body_stripped"`
	SessionID    string `json:"session_id"`
	IsNewSession string `json:"is_new_session"` // "true" or "false"
}

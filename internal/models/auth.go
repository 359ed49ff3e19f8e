package models

// CommandAuthorization is the result of one authorization resolution
type CommandAuthorization struct {
	IsWhatsAppSurface  bool     `json:"is_whatsapp_surface"`
	OwnerList          []string `json:"owner_list"` // normalized E.164 numbers
	SenderE164         string   `json:"sender_e164,omitempty"`
	IsAuthorizedSender bool     `json:"is_authorized_sender"`
	From               string   `json:"from,omitempty"` // transport prefix stripped
	To                 string   `json:"to,omitempty"`
}

// GroupKeyResolution identifies a group conversation
type GroupKeyResolution struct {
	ID        string   `json:"id"`
	Key       string   `json:"key"`
	LegacyKey string   `json:"legacy_key,omitempty"` // previous key format, migrated on first sight
	Surface   Surface  `json:"surface,omitempty"`
	ChatType  ChatType `json:"chat_type,omitempty"`
}

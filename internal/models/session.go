package models

import (
	"fmt"
	"strings"
)

// SessionScope decides how messages are grouped into sessions
type SessionScope string

const (
	ScopePerSender SessionScope = "per-sender"
	ScopePerGroup  SessionScope = "per-group"
	ScopeGlobal    SessionScope = "global"
)

// ParseSessionScope validates a configured scope; empty means per-sender
func ParseSessionScope(raw string) (SessionScope, error) {
	switch SessionScope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ScopePerSender:
		return ScopePerSender, nil
	case ScopePerGroup:
		return ScopePerGroup, nil
	case ScopeGlobal:
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("unknown session scope %q", raw)
	}
}

// SendPolicy controls whether replies may be delivered for a session
type SendPolicy string

const (
	SendPolicyUnset SendPolicy = ""
	SendPolicyAllow SendPolicy = "allow"
	SendPolicyDeny  SendPolicy = "deny"
)

// ParseSendPolicy validates a send policy value
func ParseSendPolicy(raw string) (SendPolicy, error) {
	switch SendPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case SendPolicyUnset:
		return SendPolicyUnset, nil
	case SendPolicyAllow:
		return SendPolicyAllow, nil
	case SendPolicyDeny:
		return SendPolicyDeny, nil
	default:
		return "", fmt.Errorf("unknown send policy %q", raw)
	}
}

// SessionEntry is the persisted state of one conversation session.
// JSON keys stay camelCase so existing session documents keep loading.
type SessionEntry struct {
	SessionID      string `json:"sessionId"`
	UpdatedAt      int64  `json:"updatedAt"` // unix milliseconds
	SystemSent     bool   `json:"systemSent,omitempty"`
	AbortedLastRun bool   `json:"abortedLastRun,omitempty"`

	// Overrides set by control commands
	ThinkingLevel    string     `json:"thinkingLevel,omitempty"`
	VerboseLevel     string     `json:"verboseLevel,omitempty"`
	ModelOverride    string     `json:"modelOverride,omitempty"`
	ProviderOverride string     `json:"providerOverride,omitempty"`
	SendPolicy       SendPolicy `json:"sendPolicy,omitempty"`

	// Queue tuning
	QueueMode       string `json:"queueMode,omitempty"`
	QueueDebounceMs *int64 `json:"queueDebounceMs,omitempty"`
	QueueCap        *int   `json:"queueCap,omitempty"`
	QueueDrop       string `json:"queueDrop,omitempty"`

	// Usage counters written by the agent runner
	InputTokens   int64 `json:"inputTokens,omitempty"`
	OutputTokens  int64 `json:"outputTokens,omitempty"`
	TotalTokens   int64 `json:"totalTokens,omitempty"`
	ContextTokens int64 `json:"contextTokens,omitempty"`

	// Group display metadata
	DisplayName string   `json:"displayName,omitempty"`
	ChatType    ChatType `json:"chatType,omitempty"`
	Surface     Surface  `json:"surface,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	Room        string   `json:"room,omitempty"`
	Space       string   `json:"space,omitempty"`
}

// Clone returns a deep copy of the entry
func (e *SessionEntry) Clone() *SessionEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.QueueDebounceMs != nil {
		v := *e.QueueDebounceMs
		c.QueueDebounceMs = &v
	}
	if e.QueueCap != nil {
		v := *e.QueueCap
		c.QueueCap = &v
	}
	return &c
}

// Sessions maps session keys to their entries
type Sessions map[string]*SessionEntry

// Clone returns a deep copy of the whole map
func (s Sessions) Clone() Sessions {
	out := make(Sessions, len(s))
	for k, v := range s {
		out[k] = v.Clone()
	}
	return out
}

// SessionRecord is the table row used by the database-backed stores
type SessionRecord struct {
	Key       string `gorm:"primaryKey;column:key"`
	Entry     string `gorm:"type:text;not null;column:entry"` // JSON encoded SessionEntry
	UpdatedAt int64  `gorm:"index;column:updated_at;autoUpdateTime:false"`
}

// TableName keeps the table name stable across drivers
func (SessionRecord) TableName() string {
	return "session_entries"
}

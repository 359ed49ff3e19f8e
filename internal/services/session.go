package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/Ananth-NQI/sessiongate/internal/config"
	"github.com/Ananth-NQI/sessiongate/internal/models"
	"github.com/Ananth-NQI/sessiongate/internal/storage"
)

const (
	DefaultMainKey     = "main"
	DefaultIdleMinutes = 60
	roomMarker         = "#"
)

// DefaultResetTriggers are used when the config lists none
var DefaultResetTriggers = []string{"/new", "/reset"}

// ConfigSource hands out the config in effect for one invocation
type ConfigSource interface {
	Current() *config.Config
}

// SessionManager resolves which persisted session an inbound message belongs to.
// It does no per-key locking: two concurrent calls for the same key race on
// load-modify-save and the last writer wins. Callers that care serialize.
type SessionManager struct {
	store        storage.Store
	configs      ConfigSource
	now          func() time.Time
	newSessionID func() string
}

// Option customizes a SessionManager
type Option func(*SessionManager)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(sm *SessionManager) { sm.now = now }
}

// WithIDGenerator replaces the random session id source
func WithIDGenerator(gen func() string) Option {
	return func(sm *SessionManager) { sm.newSessionID = gen }
}

// NewSessionManager creates a new session manager
func NewSessionManager(store storage.Store, configs ConfigSource, opts ...Option) *SessionManager {
	sm := &SessionManager{
		store:        store,
		configs:      configs,
		now:          time.Now,
		newSessionID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// SessionInitResult is everything the reply pipeline needs about the resolved session
type SessionInitResult struct {
	SessionCtx            models.TemplateContext
	SessionEntry          *models.SessionEntry
	SessionStore          models.Sessions
	SessionKey            string
	SessionID             string
	IsNewSession          bool
	ResetTriggered        bool
	SystemSent            bool
	AbortedLastRun        bool
	StorePath             string
	SessionScope          models.SessionScope
	GroupResolution       *models.GroupKeyResolution
	IsGroup               bool
	BodyStripped          string // only meaningful when ResetTriggered
	TriggerBodyNormalized string
}

// sessionSettings are the resolved session options for one invocation
type sessionSettings struct {
	mainKey       string
	resetTriggers []string
	idle          time.Duration
	scope         models.SessionScope
}

func resolveSettings(cfg *config.Config) sessionSettings {
	s := sessionSettings{
		mainKey:       DefaultMainKey,
		resetTriggers: DefaultResetTriggers,
		scope:         models.ScopePerSender,
	}
	idleMinutes := DefaultIdleMinutes
	if cfg != nil {
		if cfg.Session.MainKey != "" {
			s.mainKey = cfg.Session.MainKey
		}
		if len(cfg.Session.ResetTriggers) > 0 {
			s.resetTriggers = cfg.Session.ResetTriggers
		}
		if cfg.Session.IdleMinutes != nil {
			idleMinutes = *cfg.Session.IdleMinutes
		}
		if scope, err := models.ParseSessionScope(cfg.Session.Scope); err == nil {
			s.scope = scope
		} else {
			log.Printf("⚠️  %v, falling back to %s", err, models.ScopePerSender)
		}
	}
	if idleMinutes < 1 {
		idleMinutes = 1
	}
	s.idle = time.Duration(idleMinutes) * time.Minute
	return s
}

// InitSessionState resolves, updates and persists the session for msg.
//
// commandAuthorized is the platform-level command gate; a reset trigger only
// fires when it holds and the sender is an owner. When saving fails the result
// is still returned, together with an error wrapping storage.ErrSave, so the
// caller can choose to continue with the unpersisted entry.
func (sm *SessionManager) InitSessionState(ctx context.Context, msg *models.MsgContext, commandAuthorized bool) (*SessionInitResult, error) {
	return sm.initSessionState(ctx, sm.configs.Current(), msg, commandAuthorized)
}

func (sm *SessionManager) initSessionState(ctx context.Context, cfg *config.Config, msg *models.MsgContext, commandAuthorized bool) (*SessionInitResult, error) {
	settings := resolveSettings(cfg)

	sessions, err := sm.store.Load(ctx)
	if err != nil {
		log.Printf("⚠️  Session store %s unreadable, starting empty: %v", sm.store.Path(), err)
		sessions = nil
	}
	if sessions == nil {
		sessions = make(models.Sessions)
	}

	group := ResolveGroupSessionKey(msg)
	isGroup := models.ParseChatType(msg.ChatType) == models.ChatTypeGroup || group != nil
	triggerBodyNormalized := strings.ToLower(strings.TrimSpace(StripStructuralPrefixes(msg.Body)))

	resetAuthorized := ResolveCommandAuthorization(msg, cfg, commandAuthorized).IsAuthorizedSender

	strippedForReset := triggerBodyNormalized
	if isGroup {
		strippedForReset = StripMentions(triggerBodyNormalized, msg, cfg)
	}

	var isNewSession, resetTriggered bool
	var bodyStripped string
	if resetAuthorized {
		bodyStripped, resetTriggered = matchResetTrigger(settings.resetTriggers, strings.TrimSpace(msg.Body), strippedForReset)
		isNewSession = resetTriggered
	}

	sessionKey := ResolveSessionKey(settings.scope, msg, group, settings.mainKey)
	migrateLegacyKey(sessions, group, sessionKey)

	now := sm.now()
	entry := sessions[sessionKey]
	fresh := entry != nil && now.UnixMilli()-entry.UpdatedAt <= settings.idle.Milliseconds()

	update := entryUpdate{UpdatedAt: now.UnixMilli()}
	var base *models.SessionEntry
	if !isNewSession && fresh {
		base = entry
		update.SessionID = entry.SessionID
		update.SystemSent = entry.SystemSent
		update.AbortedLastRun = entry.AbortedLastRun
		update.ThinkingLevel = entry.ThinkingLevel
		update.VerboseLevel = entry.VerboseLevel
		update.ModelOverride = entry.ModelOverride
		update.ProviderOverride = entry.ProviderOverride
	} else {
		update.SessionID = sm.newSessionID()
		isNewSession = true
	}

	sessionEntry := mergeEntry(base, update)
	if group != nil {
		applyGroupMetadata(sessionEntry, group, msg, sessionKey)
	} else if sessionEntry.ChatType == models.ChatTypeUnset {
		sessionEntry.ChatType = models.ChatTypeDirect
	}
	sessions[sessionKey] = sessionEntry

	if isNewSession {
		log.Printf("🆕 New session %s for %s (reset=%v)", sessionEntry.SessionID, sessionKey, resetTriggered)
	}

	sessionBody := msg.Body
	if resetTriggered {
		sessionBody = bodyStripped
	}
	result := &SessionInitResult{
		SessionCtx: models.TemplateContext{
			MsgContext:   *msg,
			BodyStripped: sessionBody,
			SessionID:    sessionEntry.SessionID,
			IsNewSession: strconv.FormatBool(isNewSession),
		},
		SessionEntry:          sessionEntry,
		SessionStore:          sessions,
		SessionKey:            sessionKey,
		SessionID:             sessionEntry.SessionID,
		IsNewSession:          isNewSession,
		ResetTriggered:        resetTriggered,
		SystemSent:            sessionEntry.SystemSent,
		AbortedLastRun:        sessionEntry.AbortedLastRun,
		StorePath:             sm.store.Path(),
		SessionScope:          settings.scope,
		GroupResolution:       group,
		IsGroup:               isGroup,
		BodyStripped:          bodyStripped,
		TriggerBodyNormalized: triggerBodyNormalized,
	}

	if err := sm.store.Save(ctx, sessions); err != nil {
		if !errors.Is(err, storage.ErrSave) {
			err = fmt.Errorf("%w: %v", storage.ErrSave, err)
		}
		return result, fmt.Errorf("failed to persist session %s: %w", sessionKey, err)
	}
	return result, nil
}

// matchResetTrigger returns the text after the first matching trigger.
// Blank triggers are skipped; a trigger matches the whole text or a "trigger " prefix.
func matchResetTrigger(triggers []string, trimmedBody, strippedForReset string) (string, bool) {
	for _, trigger := range triggers {
		if strings.TrimSpace(trigger) == "" {
			continue
		}
		if trimmedBody == trigger || strippedForReset == trigger {
			return "", true
		}
		prefix := trigger + " "
		for _, candidate := range []string{trimmedBody, strippedForReset} {
			if strings.HasPrefix(candidate, prefix) {
				return strings.TrimLeftFunc(candidate[len(trigger):], unicode.IsSpace), true
			}
		}
	}
	return "", false
}

// migrateLegacyKey moves an entry stored under the group's legacy key to key.
// An entry already under key always wins; the legacy one is then left alone.
func migrateLegacyKey(sessions models.Sessions, group *models.GroupKeyResolution, key string) {
	if group == nil || group.LegacyKey == "" || group.LegacyKey == key {
		return
	}
	legacy, ok := sessions[group.LegacyKey]
	if !ok || legacy == nil {
		return
	}
	if _, exists := sessions[key]; exists {
		return
	}
	sessions[key] = legacy
	delete(sessions, group.LegacyKey)
	log.Printf("🔀 Migrated session %s → %s", group.LegacyKey, key)
}

// entryUpdate holds the values decided for this touch of a session
type entryUpdate struct {
	SessionID        string
	UpdatedAt        int64
	SystemSent       bool
	AbortedLastRun   bool
	ThinkingLevel    string
	VerboseLevel     string
	ModelOverride    string
	ProviderOverride string
}

// mergeEntry builds the next entry field by field.
// Precedence: value in u, else value in base, else zero. base is nil for new sessions,
// so a new session starts without overrides, queue tuning or display metadata.
func mergeEntry(base *models.SessionEntry, u entryUpdate) *models.SessionEntry {
	if base == nil {
		base = &models.SessionEntry{}
	}
	prev := base.Clone()
	return &models.SessionEntry{
		SessionID:      u.SessionID,
		UpdatedAt:      u.UpdatedAt,
		SystemSent:     u.SystemSent,
		AbortedLastRun: u.AbortedLastRun,

		ThinkingLevel:    firstNonEmpty(u.ThinkingLevel, prev.ThinkingLevel),
		VerboseLevel:     firstNonEmpty(u.VerboseLevel, prev.VerboseLevel),
		ModelOverride:    firstNonEmpty(u.ModelOverride, prev.ModelOverride),
		ProviderOverride: firstNonEmpty(u.ProviderOverride, prev.ProviderOverride),
		SendPolicy:       prev.SendPolicy,

		QueueMode:       prev.QueueMode,
		QueueDebounceMs: prev.QueueDebounceMs,
		QueueCap:        prev.QueueCap,
		QueueDrop:       prev.QueueDrop,

		InputTokens:   prev.InputTokens,
		OutputTokens:  prev.OutputTokens,
		TotalTokens:   prev.TotalTokens,
		ContextTokens: prev.ContextTokens,

		DisplayName: prev.DisplayName,
		ChatType:    prev.ChatType,
		Surface:     prev.Surface,
		Subject:     prev.Subject,
		Room:        prev.Room,
		Space:       prev.Space,
	}
}

// applyGroupMetadata refreshes chat type, surface, subject/room/space and display name
func applyGroupMetadata(e *models.SessionEntry, group *models.GroupKeyResolution, msg *models.MsgContext, sessionKey string) {
	subject := strings.TrimSpace(msg.GroupSubject)
	space := strings.TrimSpace(msg.GroupSpace)
	room := strings.TrimSpace(msg.GroupRoom)

	// a blank room is the same as no room
	if room == "" && group.Surface.IsRoomBased() && strings.HasPrefix(subject, roomMarker) {
		room = subject
	}
	if room != "" {
		subject = ""
	}

	e.ChatType = group.ChatType
	if e.ChatType == models.ChatTypeUnset {
		e.ChatType = models.ChatTypeGroup
	}
	if group.Surface != "" {
		e.Surface = group.Surface
	}
	if subject != "" {
		e.Subject = subject
	}
	if room != "" {
		e.Room = room
	}
	if space != "" {
		e.Space = space
	}
	e.DisplayName = BuildGroupDisplayName(GroupDisplayParams{
		Surface: e.Surface,
		Subject: e.Subject,
		Room:    e.Room,
		Space:   e.Space,
		ID:      group.ID,
		Key:     sessionKey,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SessionSummary is a read-only view of one stored session
type SessionSummary struct {
	Key         string          `json:"key"`
	SessionID   string          `json:"session_id"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Fresh       bool            `json:"fresh"`
	DisplayName string          `json:"display_name,omitempty"`
	ChatType    models.ChatType `json:"chat_type,omitempty"`
	Surface     models.Surface  `json:"surface,omitempty"`
}

// ListSessions returns stored sessions, most recently updated first.
// Unlike InitSessionState, store read errors are returned here.
func (sm *SessionManager) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := sm.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	idle := resolveSettings(sm.configs.Current()).idle
	now := sm.now()

	summaries := make([]SessionSummary, 0, len(sessions))
	for key, e := range sessions {
		if e == nil {
			continue
		}
		summaries = append(summaries, SessionSummary{
			Key:         key,
			SessionID:   e.SessionID,
			UpdatedAt:   time.UnixMilli(e.UpdatedAt),
			Fresh:       now.UnixMilli()-e.UpdatedAt <= idle.Milliseconds(),
			DisplayName: e.DisplayName,
			ChatType:    e.ChatType,
			Surface:     e.Surface,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].Key < summaries[j].Key
		}
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// SessionStats provides session statistics
type SessionStats struct {
	TotalSessions      int            `json:"total_sessions"`
	ActiveSessions     int            `json:"active_sessions"`
	SessionsByChatType map[string]int `json:"sessions_by_chat_type"`
}

// GetSessionStats counts stored and still-fresh sessions
func (sm *SessionManager) GetSessionStats(ctx context.Context) (*SessionStats, error) {
	summaries, err := sm.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	stats := &SessionStats{
		TotalSessions:      len(summaries),
		SessionsByChatType: make(map[string]int),
	}
	for _, s := range summaries {
		if s.Fresh {
			stats.ActiveSessions++
		}
		stats.SessionsByChatType[string(s.ChatType)]++
	}
	return stats, nil
}

// StorePath exposes where sessions are persisted
func (sm *SessionManager) StorePath() string {
	return sm.store.Path()
}

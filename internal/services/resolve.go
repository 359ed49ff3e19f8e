package services

import (
	"context"
	"errors"
	"log"

	"github.com/Ananth-NQI/sessiongate/internal/models"
	"github.com/Ananth-NQI/sessiongate/internal/storage"
)

// Resolution summarizes one inbound message for ingress callers
type Resolution struct {
	SessionKey        string                      `json:"session_key"`
	SessionID         string                      `json:"session_id"`
	IsNewSession      bool                        `json:"is_new_session"`
	ResetTriggered    bool                        `json:"reset_triggered"`
	BodyStripped      string                      `json:"body_stripped"`
	HasControlCommand bool                        `json:"has_control_command"`
	Authorization     models.CommandAuthorization `json:"authorization"`
	IsGroup           bool                        `json:"is_group"`
	DisplayName       string                      `json:"display_name,omitempty"`
	ChatType          models.ChatType             `json:"chat_type,omitempty"`
	Scope             models.SessionScope         `json:"scope"`
	StorePath         string                      `json:"store_path"`
	Persisted         bool                        `json:"persisted"`
}

// Resolve runs command detection, authorization and the session lifecycle for msg.
// A save failure still yields a Resolution (Persisted false) next to the error.
func (sm *SessionManager) Resolve(ctx context.Context, msg *models.MsgContext, commandAuthorized bool) (*Resolution, error) {
	cfg := sm.configs.Current()
	auth := ResolveCommandAuthorization(msg, cfg, commandAuthorized)

	res, err := sm.initSessionState(ctx, cfg, msg, commandAuthorized)
	if res == nil {
		return nil, err
	}
	if err != nil && !errors.Is(err, storage.ErrSave) {
		return nil, err
	}

	r := &Resolution{
		SessionKey:        res.SessionKey,
		SessionID:         res.SessionID,
		IsNewSession:      res.IsNewSession,
		ResetTriggered:    res.ResetTriggered,
		BodyStripped:      res.SessionCtx.BodyStripped,
		HasControlCommand: HasControlCommand(msg.Body),
		Authorization:     auth,
		IsGroup:           res.IsGroup,
		DisplayName:       res.SessionEntry.DisplayName,
		ChatType:          res.SessionEntry.ChatType,
		Scope:             res.SessionScope,
		StorePath:         res.StorePath,
		Persisted:         err == nil,
	}
	if err != nil {
		log.Printf("❌ Continuing with unpersisted session %s: %v", r.SessionKey, err)
	}
	return r, err
}

package services

import (
	"slices"
	"strings"

	"github.com/Ananth-NQI/sessiongate/internal/config"
	"github.com/Ananth-NQI/sessiongate/internal/models"
	"github.com/Ananth-NQI/sessiongate/internal/utils"
)

const allowAllEntry = "*"

// ResolveCommandAuthorization decides whether the sender of msg may run control commands.
// commandAuthorized is the platform-level gate computed upstream.
// Only WhatsApp is owner-gated; every other surface reduces to commandAuthorized.
func ResolveCommandAuthorization(msg *models.MsgContext, cfg *config.Config, commandAuthorized bool) models.CommandAuthorization {
	isWhatsApp := models.ParseSurface(string(msg.Surface)) == models.SurfaceWhatsApp ||
		strings.HasPrefix(msg.From, utils.WhatsAppPrefix) ||
		strings.HasPrefix(msg.To, utils.WhatsAppPrefix)

	from := utils.StripWhatsAppPrefix(msg.From)
	to := utils.StripWhatsAppPrefix(msg.To)

	var allowFrom []string
	if isWhatsApp && cfg != nil {
		for _, entry := range cfg.WhatsApp.AllowFrom {
			if strings.TrimSpace(entry) != "" {
				allowFrom = append(allowFrom, entry)
			}
		}
	}

	allowAll := !isWhatsApp || len(allowFrom) == 0
	for _, entry := range allowFrom {
		if strings.TrimSpace(entry) == allowAllEntry {
			allowAll = true
			break
		}
	}

	senderE164 := utils.NormalizeE164(msg.SenderE164)

	var candidates []string
	if isWhatsApp && !allowAll {
		for _, entry := range allowFrom {
			if entry != allowAllEntry {
				candidates = append(candidates, entry)
			}
		}
		// self-chat: nobody listed means the bot's own number owns it
		if len(candidates) == 0 && to != "" {
			candidates = append(candidates, to)
		}
	}

	ownerList := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if n := utils.NormalizeE164(c); n != "" {
			ownerList = append(ownerList, n)
		}
	}

	isOwner := !isWhatsApp || allowAll || len(ownerList) == 0 ||
		(senderE164 != "" && slices.Contains(ownerList, senderE164))

	return models.CommandAuthorization{
		IsWhatsAppSurface:  isWhatsApp,
		OwnerList:          ownerList,
		SenderE164:         senderE164,
		IsAuthorizedSender: commandAuthorized && isOwner,
		From:               from,
		To:                 to,
	}
}

package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Bare words only count as commands when they are the whole message
var exactCommands = map[string]struct{}{
	"help": {}, "/help": {},
	"status": {}, "/status": {},
	"restart": {}, "/restart": {},
	"activation": {}, "/activation": {},
	"send": {}, "/send": {},
	"reset": {}, "/reset": {},
	"new": {}, "/new": {},
	"compact": {}, "/compact": {},
}

// Slash tokens are commands anywhere in the text
var slashCommands = map[string]struct{}{
	"status": {}, "help": {}, "thinking": {}, "think": {}, "t": {},
	"verbose": {}, "v": {}, "elevated": {}, "elev": {}, "model": {},
	"queue": {}, "activation": {}, "send": {}, "restart": {}, "reset": {},
	"new": {}, "compact": {},
}

// HasControlCommand reports whether text is, or contains, a control command
func HasControlCommand(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if _, ok := exactCommands[strings.ToLower(trimmed)]; ok {
		return true
	}
	return hasSlashCommand(trimmed)
}

// hasSlashCommand scans for "/<token>" where the slash opens the text or
// follows whitespace and the token ends at whitespace, ':' or end of text.
func hasSlashCommand(text string) bool {
	prevSpace := true
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '/' && prevSpace {
			token := readToken(text[i+size:])
			if _, ok := slashCommands[strings.ToLower(token)]; ok {
				return true
			}
		}
		prevSpace = unicode.IsSpace(r)
		i += size
	}
	return false
}

func readToken(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == ':' || unicode.IsSpace(r)
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

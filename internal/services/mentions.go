package services

import (
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/Ananth-NQI/sessiongate/internal/config"
	"github.com/Ananth-NQI/sessiongate/internal/models"
	"github.com/Ananth-NQI/sessiongate/internal/utils"
)

// currentMessageMarker separates batched group history from the message to answer
const currentMessageMarker = "[Current message - respond to this]"

var (
	bracketGroups   = regexp.MustCompile(`\[[^\]]+\]\s*`)
	senderLabels    = regexp.MustCompile(`(?m)^[ \t]*[A-Za-z0-9+()\-_. ]+:\s*`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	numericMentions = regexp.MustCompile(`@[0-9+]{5,}`)
)

// StripStructuralPrefixes removes wrappers added by ingestion, such as
// "[Dec 4 17:35] " timestamps and "Alice: " sender labels.
func StripStructuralPrefixes(text string) string {
	if i := strings.Index(text, currentMessageMarker); i >= 0 {
		text = text[i+len(currentMessageMarker):]
	}
	text = bracketGroups.ReplaceAllString(text, "")
	text = senderLabels.ReplaceAllString(text, "")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// StripMentions removes ways of addressing the bot in a group message
func StripMentions(text string, msg *models.MsgContext, cfg *config.Config) string {
	result := text
	if cfg != nil {
		for _, re := range mentionRegexps(cfg.Routing.GroupChat.MentionPatterns) {
			result = re.ReplaceAllString(result, " ")
		}
	}

	if self := strings.TrimSpace(utils.StripWhatsAppPrefix(msg.To)); self != "" {
		// "@" is left behind by the plain replacement and swept up below
		selfRe := regexp.MustCompile(`(?i)@?` + regexp.QuoteMeta(self))
		result = selfRe.ReplaceAllString(result, " ")
	}

	result = numericMentions.ReplaceAllString(result, " ")
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(result, " "))
}

// mentionCache holds the compiled set for the most recent pattern list only,
// so a reload with new patterns replaces the old regexps
var mentionCache struct {
	sync.Mutex
	key      string
	compiled []*regexp.Regexp
	valid    bool
}

// mentionRegexps compiles configured patterns case-insensitively, skipping invalid ones
func mentionRegexps(patterns []string) []*regexp.Regexp {
	key := strings.Join(patterns, "\x00")

	mentionCache.Lock()
	defer mentionCache.Unlock()
	if mentionCache.valid && mentionCache.key == key {
		return mentionCache.compiled
	}

	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			log.Printf("⚠️  Ignoring invalid mention pattern %q: %v", p, err)
			continue
		}
		out = append(out, re)
	}
	mentionCache.key, mentionCache.compiled, mentionCache.valid = key, out, true
	return out
}

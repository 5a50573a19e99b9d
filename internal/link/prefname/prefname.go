// Package prefname spots a user telling the assistant what to call them.
// It is a best-effort heuristic: missing a name is acceptable, so the
// patterns stay narrow.
package prefname

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxShortReplyRunes = 30
	maxShortReplyWords = 2
)

var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:you can call me|please call me|call me|i go by)\s+([a-z][a-z'’\-]{1,30})`),
	regexp.MustCompile(`(?i)\b(?:my name is|it's|it’s|it is|i'm|i’m|im)\s+([a-z][a-z'’\-]{1,30})`),
}

var shortReplyWord = regexp.MustCompile(`^[A-Za-z][A-Za-z'’\-]{0,30}$`)

// notNames are words that follow "i'm" or "call me" in ordinary sentences.
var notNames = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "not": {}, "so": {}, "just": {}, "really": {},
	"very": {}, "good": {}, "fine": {}, "ok": {}, "okay": {}, "great": {},
	"going": {}, "doing": {}, "trying": {}, "looking": {}, "here": {}, "back": {},
	"busy": {}, "tired": {}, "bored": {}, "sure": {}, "sorry": {}, "new": {},
	"in": {}, "on": {}, "at": {}, "from": {}, "into": {}, "interested": {},
	"later": {}, "maybe": {}, "tomorrow": {}, "anytime": {}, "whatever": {},
	"hi": {}, "hey": {}, "hello": {}, "yo": {}, "yes": {}, "yeah": {}, "no": {},
	"nah": {}, "idk": {}, "lol": {}, "thanks": {}, "what's": {}, "what": {},
}

// Extract returns the first name a self-introduction pattern captures. When
// allowShortReply is set, because the assistant just asked for a name, a
// short reply of at most two words with no question mark counts as the name.
func Extract(text string, allowShortReply bool) (string, bool) {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if name, ok := accept(m[1]); ok {
				return name, true
			}
		}
	}

	if !allowShortReply {
		return "", false
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxShortReplyRunes || strings.Contains(trimmed, "?") {
		return "", false
	}
	words := strings.Fields(trimmed)
	if len(words) > maxShortReplyWords {
		return "", false
	}
	first := strings.TrimFunc(words[0], func(r rune) bool {
		return unicode.IsPunct(r) && r != '\'' && r != '’' && r != '-'
	})
	if !shortReplyWord.MatchString(first) {
		return "", false
	}
	return accept(first)
}

func accept(candidate string) (string, bool) {
	name := strings.TrimRight(candidate, "'’-")
	if name == "" {
		return "", false
	}
	if _, stop := notNames[strings.ToLower(name)]; stop {
		return "", false
	}
	return name, true
}

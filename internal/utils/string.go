package utils

import (
	"strings"
)

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

// ClampString trims s to at most max bytes, cutting on a rune boundary
func ClampString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	size := 0
	for _, r := range runes {
		size += len(string(r))
		if size > max {
			break
		}
		out = append(out, r)
	}
	return string(out)
}

// LooksLikeAddress is a cheap check used when choosing the From header
func LooksLikeAddress(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t")
}

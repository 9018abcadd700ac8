package utils

import (
	"regexp"
	"strings"
)

var (
	encodedWordRegex   = regexp.MustCompile(`=\?[^?]+\?[BbQq]\?|\?=`)
	hostileCharsRegex  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	underscoreRunRegex = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename makes an attachment filename safe to store: strips
// quoted-printable artefacts, replaces spaces with underscores, removes
// filesystem-hostile characters, collapses underscore runs and trims to 100
// characters. An empty result falls back to the cleaned subject, then to
// "unknown".
func SanitizeFilename(name string, subjectFallback string) string {
	cleaned := sanitize(name)
	if cleaned != "" {
		return cleaned
	}

	cleaned = sanitize(subjectFallback)
	if cleaned != "" {
		return cleaned
	}

	return "unknown"
}

func sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = encodedWordRegex.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "=20", "_")
	name = strings.ReplaceAll(name, " ", "_")
	name = hostileCharsRegex.ReplaceAllString(name, "")
	name = underscoreRunRegex.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")

	if len(name) > 100 {
		name = ClampString(name, 100)
		name = strings.Trim(name, "._")
	}

	return name
}

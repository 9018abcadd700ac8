package search

import (
	"strings"
	"unicode/utf8"
)

const previewLen = 200

// previewWindow extracts up to previewLen characters of context around one
// match. The window is clamped to rune boundaries and clipped edges are
// marked with an ellipsis.
func previewWindow(text string, loc []int) string {
	if text == "" {
		return ""
	}

	start, end := loc[0], loc[1]
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}

	matchLen := end - start
	pad := (previewLen - matchLen) / 2
	if pad < 0 {
		pad = 0
	}

	winStart := start - pad
	if winStart < 0 {
		winStart = 0
	}
	winEnd := winStart + previewLen
	if winEnd > len(text) {
		winEnd = len(text)
		if winEnd-previewLen > 0 {
			winStart = winEnd - previewLen
		} else {
			winStart = 0
		}
	}

	// step back/forward to rune boundaries
	for winStart > 0 && !utf8.RuneStart(text[winStart]) {
		winStart--
	}
	for winEnd < len(text) && !utf8.RuneStart(text[winEnd]) {
		winEnd++
	}

	window := strings.TrimSpace(text[winStart:winEnd])

	if winStart > 0 {
		window = "…" + window
	}
	if winEnd < len(text) {
		window = window + "…"
	}

	return window
}

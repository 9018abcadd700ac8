package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		subject  string
		expected string
	}{
		{
			name:     "plain filename untouched",
			input:    "report.pdf",
			expected: "report.pdf",
		},
		{
			name:     "spaces become underscores",
			input:    "quarterly report final.pdf",
			expected: "quarterly_report_final.pdf",
		},
		{
			name:     "hostile characters removed",
			input:    `in<voi>ce:"2024"/q1\|?*.txt`,
			expected: "invoice2024q1.txt",
		},
		{
			name:     "underscore runs collapse",
			input:    "a  b   c.txt",
			expected: "a_b_c.txt",
		},
		{
			name:     "quoted printable artefacts stripped",
			input:    "=?utf-8?Q?bericht=20mai?=.pdf",
			expected: "bericht_mai.pdf",
		},
		{
			name:     "empty falls back to subject",
			input:    "",
			subject:  "Invoice May",
			expected: "Invoice_May",
		},
		{
			name:     "empty and no subject falls back to unknown",
			input:    "???",
			expected: "unknown",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeFilename(tc.input, tc.subject))
		})
	}
}

func TestSanitizeFilenameTrimsLongNames(t *testing.T) {
	long := strings.Repeat("a", 300) + ".txt"

	got := SanitizeFilename(long, "")

	assert.LessOrEqual(t, len(got), 100)
	assert.True(t, strings.HasPrefix(got, "aaa"))
}

func TestClampString(t *testing.T) {
	assert.Equal(t, "abc", ClampString("abc", 10))
	assert.Equal(t, "abc", ClampString("abcdef", 3))
	// never splits a multi-byte rune
	assert.Equal(t, "aé", ClampString("aéb", 3))
}

func TestLooksLikeAddress(t *testing.T) {
	assert.True(t, LooksLikeAddress("archive@example.com"))
	assert.False(t, LooksLikeAddress("Archive Account"))
	assert.False(t, LooksLikeAddress("@example.com"))
	assert.False(t, LooksLikeAddress("archive@"))
}

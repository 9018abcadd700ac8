package processor

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/policy"
	"github.com/mailvault/mailvault/services/extractor"
	"github.com/mailvault/mailvault/services/imap"
)

func defaultView() policy.View {
	global := &config.ExtractionConfig{
		StoreTextOnly:         true,
		MaxAttachmentSizeText: 10485760,
		ExtractPDFText:        true,
		ExtractDocxText:       true,
		ExtractImageText:      true,
		ExtractOtherText:      true,
	}
	return policy.Resolve(global, nil)
}

func rawMessage(headers map[string]string, body string) []byte {
	var b strings.Builder
	for key, value := range headers {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func TestParseMessageCanonicalizesHeaders(t *testing.T) {
	raw := imap.RawMessage{
		UID:    42,
		Folder: "INBOX",
		Raw: rawMessage(map[string]string{
			"Message-Id":   "<abc123@mail.example.com>",
			"From":         "Alice <alice@example.com>",
			"To":           "bob@example.com",
			"Subject":      "Quarterly numbers",
			"Date":         "Tue, 14 Jan 2025 10:30:00 +0200",
			"Content-Type": "text/plain; charset=utf-8",
		}, "Here are the numbers.\r\n"),
	}
	account := models.Account{ID: 7}

	email, attachments, err := parseMessage(raw, account, defaultView(), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, uint(7), email.SMTPConfigID)
	assert.Equal(t, "abc123@mail.example.com", email.MessageID)
	assert.Equal(t, "Alice <alice@example.com>", email.Sender)
	assert.Equal(t, "bob@example.com", email.Recipient)
	assert.Equal(t, "Quarterly numbers", email.Subject)
	assert.Equal(t, "Here are the numbers.", strings.TrimSpace(email.BodyPlain))
	assert.Equal(t, time.Date(2025, 1, 14, 8, 30, 0, 0, time.UTC), email.EmailDate)
	assert.Empty(t, attachments)
}

func TestParseMessageSynthesizesMissingMessageID(t *testing.T) {
	raw := imap.RawMessage{
		UID:    99,
		Folder: "INBOX",
		Raw: rawMessage(map[string]string{
			"From":         "alice@example.com",
			"To":           "bob@example.com",
			"Subject":      "no id",
			"Content-Type": "text/plain",
		}, "body\r\n"),
	}
	account := models.Account{ID: 3}

	email, _, err := parseMessage(raw, account, defaultView(), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "uid_99_3", email.MessageID)
}

func TestParseMessageFallsBackToNowOnBadDate(t *testing.T) {
	raw := imap.RawMessage{
		UID: 1,
		Raw: rawMessage(map[string]string{
			"Message-Id":   "<d@e>",
			"From":         "a@b.c",
			"Date":         "not a date at all",
			"Content-Type": "text/plain",
		}, "x\r\n"),
	}

	before := time.Now().UTC()
	email, _, err := parseMessage(raw, models.Account{ID: 1}, defaultView(), nil, nil)
	after := time.Now().UTC()

	require.NoError(t, err)
	assert.False(t, email.EmailDate.Before(before))
	assert.False(t, email.EmailDate.After(after))
}

func TestParseMessageClampsLongAddresses(t *testing.T) {
	longSender := strings.Repeat("a", 600) + "@example.com"
	raw := imap.RawMessage{
		UID: 2,
		Raw: rawMessage(map[string]string{
			"Message-Id":   "<clamp@test>",
			"From":         longSender,
			"To":           longSender,
			"Content-Type": "text/plain",
		}, "x\r\n"),
	}

	email, _, err := parseMessage(raw, models.Account{ID: 1}, defaultView(), nil, nil)

	require.NoError(t, err)
	assert.LessOrEqual(t, len(email.Sender), 500)
	assert.LessOrEqual(t, len(email.Recipient), 500)
}

func TestParseMessageDerivesPlainTextFromHTML(t *testing.T) {
	raw := imap.RawMessage{
		UID: 3,
		Raw: rawMessage(map[string]string{
			"Message-Id":   "<html-only@test>",
			"From":         "a@b.c",
			"Content-Type": "text/html; charset=utf-8",
		}, "<html><body><p>Invoice</p><p>please pay now</p></body></html>\r\n"),
	}

	email, _, err := parseMessage(raw, models.Account{ID: 1}, defaultView(), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Invoice please pay now", email.BodyPlain)
	assert.Empty(t, email.BodyHTML, "text-only storage drops the html body")
}

func multipartAlternative(plain, html string) []byte {
	boundary := "altboundary42"
	var b strings.Builder
	b.WriteString("Message-Id: <alt@test>\r\n")
	b.WriteString("From: a@b.c\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%s\r\n", boundary))
	b.WriteString("\r\n")
	b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(plain)
	b.WriteString("\r\n")
	b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")
	b.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return []byte(b.String())
}

func TestParseMessageKeepsAuthoredPlainAlternative(t *testing.T) {
	raw := imap.RawMessage{
		UID: 8,
		Raw: multipartAlternative("the authored plain body", "<p>rendered body</p>"),
	}

	email, _, err := parseMessage(raw, models.Account{ID: 1}, defaultView(), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "the authored plain body", strings.TrimSpace(email.BodyPlain))
}

func TestParseMessageKeepsHTMLWhenStoreTextOnlyDisabled(t *testing.T) {
	raw := imap.RawMessage{
		UID: 4,
		Raw: rawMessage(map[string]string{
			"Message-Id":   "<keep-html@test>",
			"From":         "a@b.c",
			"Content-Type": "text/html; charset=utf-8",
		}, "<p>hello</p>\r\n"),
	}

	view := defaultView()
	view.StoreTextOnly = false

	email, _, err := parseMessage(raw, models.Account{ID: 1}, view, nil, nil)

	require.NoError(t, err)
	assert.Contains(t, email.BodyHTML, "<p>hello</p>")
}

func multipartWithAttachment(filename, contentType, payload string) []byte {
	boundary := "deadbeefboundary"
	var b strings.Builder
	b.WriteString("Message-Id: <mp@test>\r\n")
	b.WriteString("From: a@b.c\r\n")
	b.WriteString("To: d@e.f\r\n")
	b.WriteString("Subject: with attachment\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s\r\n", boundary))
	b.WriteString("\r\n")
	b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString("see attached\r\n")
	b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	b.WriteString(fmt.Sprintf("Content-Type: %s\r\n", contentType))
	b.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n\r\n", filename))
	b.WriteString(payload)
	b.WriteString("\r\n")
	b.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return []byte(b.String())
}

func TestParseMessageExtractsAttachmentText(t *testing.T) {
	raw := imap.RawMessage{
		UID: 5,
		Raw: multipartWithAttachment("notes.txt", "text/plain", "meeting notes inside"),
	}

	email, attachments, err := parseMessage(raw, models.Account{ID: 1}, defaultView(), extractor.NewService(nil), nil)

	require.NoError(t, err)
	assert.Equal(t, "see attached", strings.TrimSpace(email.BodyPlain))
	require.Len(t, attachments, 1)
	assert.Equal(t, "notes.txt", attachments[0].Filename)
	require.NotNil(t, attachments[0].TextContent)
	assert.Contains(t, *attachments[0].TextContent, "meeting notes inside")
}

func TestParseMessageUnsupportedAttachmentKeepsRecordWithoutText(t *testing.T) {
	raw := imap.RawMessage{
		UID: 6,
		Raw: multipartWithAttachment("blob.bin", "application/octet-stream", "\x00\x01binary"),
	}

	_, attachments, err := parseMessage(raw, models.Account{ID: 1}, defaultView(), extractor.NewService(nil), nil)

	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, "blob.bin", attachments[0].Filename)
	assert.Nil(t, attachments[0].TextContent)
}

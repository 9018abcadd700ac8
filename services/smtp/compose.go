package smtp

import (
	"fmt"
	"strings"

	"github.com/mailvault/mailvault/internal/models"
)

// BuildReply derives a reply to a stored message: the subject gains a
// single "Re: " prefix, the original body is quoted below the new text and
// threading headers point back at the original.
func BuildReply(original *models.Email, body string) *OutgoingEmail {
	subject := original.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("On %s, %s wrote:\n", original.EmailDate.Format("Mon, 2 Jan 2006 at 15:04"), original.Sender))
	b.WriteString(quoteBody(original.BodyPlain))

	messageID := "<" + original.MessageID + ">"
	references := messageID

	return &OutgoingEmail{
		To:         []string{original.Sender},
		Subject:    subject,
		BodyText:   b.String(),
		InReplyTo:  messageID,
		References: references,
	}
}

// BuildForward derives a forward of a stored message: the subject gains a
// single "Fwd: " prefix and the original appears below a separator with its
// routing headers. Attachment text extracted at ingest time rides along as
// plain text when requested.
func BuildForward(original *models.Email, to []string, note string, includeAttachmentText bool) *OutgoingEmail {
	subject := original.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "fwd:") {
		subject = "Fwd: " + subject
	}

	var b strings.Builder
	if note != "" {
		b.WriteString(note)
		b.WriteString("\n\n")
	}
	b.WriteString("---------- Forwarded message ----------\n")
	b.WriteString(fmt.Sprintf("From: %s\n", original.Sender))
	b.WriteString(fmt.Sprintf("Date: %s\n", original.EmailDate.Format("Mon, 2 Jan 2006 at 15:04")))
	b.WriteString(fmt.Sprintf("Subject: %s\n", original.Subject))
	b.WriteString(fmt.Sprintf("To: %s\n\n", original.Recipient))
	b.WriteString(original.BodyPlain)

	if includeAttachmentText {
		for _, attachment := range original.Attachments {
			if attachment.TextContent == nil || *attachment.TextContent == "" {
				continue
			}
			b.WriteString(fmt.Sprintf("\n\n--- attachment: %s ---\n", attachment.Filename))
			b.WriteString(*attachment.TextContent)
		}
	}

	return &OutgoingEmail{
		To:       to,
		Subject:  subject,
		BodyText: b.String(),
	}
}

func quoteBody(body string) string {
	if body == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

package smtp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/utils"
)

func testContext() context.Context {
	return context.Background()
}

func storedEmail() *models.Email {
	return &models.Email{
		MessageID: "orig123@mail.example.com",
		Sender:    "alice@example.com",
		Recipient: "bob@example.com",
		Subject:   "Budget review",
		EmailDate: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		BodyPlain: "first line\nsecond line",
	}
}

func TestBuildReplyQuotesOriginal(t *testing.T) {
	reply := BuildReply(storedEmail(), "Sounds good.")

	assert.Equal(t, []string{"alice@example.com"}, reply.To)
	assert.Equal(t, "Re: Budget review", reply.Subject)
	assert.Equal(t, "<orig123@mail.example.com>", reply.InReplyTo)
	assert.Equal(t, "<orig123@mail.example.com>", reply.References)
	assert.Contains(t, reply.BodyText, "Sounds good.")
	assert.Contains(t, reply.BodyText, "> first line\n> second line")
	assert.Contains(t, reply.BodyText, "alice@example.com wrote:")
}

func TestBuildReplyDoesNotStackPrefixes(t *testing.T) {
	original := storedEmail()
	original.Subject = "Re: Budget review"

	reply := BuildReply(original, "ack")

	assert.Equal(t, "Re: Budget review", reply.Subject)
}

func TestBuildForwardIncludesOriginalHeaders(t *testing.T) {
	forward := BuildForward(storedEmail(), []string{"carol@example.com"}, "FYI", false)

	assert.Equal(t, []string{"carol@example.com"}, forward.To)
	assert.Equal(t, "Fwd: Budget review", forward.Subject)
	assert.Contains(t, forward.BodyText, "FYI")
	assert.Contains(t, forward.BodyText, "---------- Forwarded message ----------")
	assert.Contains(t, forward.BodyText, "From: alice@example.com")
	assert.Contains(t, forward.BodyText, "Subject: Budget review")
	assert.Contains(t, forward.BodyText, "To: bob@example.com")
	assert.Contains(t, forward.BodyText, "first line")
}

func TestBuildForwardCarriesAttachmentText(t *testing.T) {
	original := storedEmail()
	original.Attachments = []models.EmailAttachment{
		{Filename: "notes.txt", TextContent: utils.StringPtr("meeting notes")},
		{Filename: "blob.bin", TextContent: nil},
	}

	forward := BuildForward(original, []string{"carol@example.com"}, "", true)

	assert.Contains(t, forward.BodyText, "--- attachment: notes.txt ---")
	assert.Contains(t, forward.BodyText, "meeting notes")
	assert.NotContains(t, forward.BodyText, "blob.bin")
}

func TestPrepareMessagePlainText(t *testing.T) {
	sender := NewSender(nil, nil)
	email := &OutgoingEmail{
		To:       []string{"bob@example.com"},
		Subject:  "hello",
		BodyText: "plain body",
	}

	buffer, err := sender.prepareMessage(testContext(), "alice@example.com", "<id@example.com>", email)

	require.NoError(t, err)
	message := buffer.String()
	assert.Contains(t, message, "From: alice@example.com\r\n")
	assert.Contains(t, message, "To: bob@example.com\r\n")
	assert.Contains(t, message, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.Contains(t, message, "plain body")
}

func TestPrepareMessageEmitsReplyToWhenSet(t *testing.T) {
	sender := NewSender(nil, nil)
	email := &OutgoingEmail{
		To:       []string{"bob@example.com"},
		ReplyTo:  "support@example.com",
		Subject:  "hello",
		BodyText: "plain body",
	}

	buffer, err := sender.prepareMessage(testContext(), "alice@example.com", "<id@example.com>", email)

	require.NoError(t, err)
	assert.Contains(t, buffer.String(), "Reply-To: support@example.com\r\n")

	email.ReplyTo = ""
	buffer, err = sender.prepareMessage(testContext(), "alice@example.com", "<id@example.com>", email)

	require.NoError(t, err)
	assert.NotContains(t, buffer.String(), "Reply-To:")
}

func TestPrepareMessageMultipartWithAttachment(t *testing.T) {
	sender := NewSender(nil, nil)
	email := &OutgoingEmail{
		To:       []string{"bob@example.com"},
		Bcc:      []string{"hidden@example.com"},
		Subject:  "hello",
		BodyText: "plain body",
		BodyHTML: "<p>rich body</p>",
		Attachments: []OutgoingAttachment{
			{Filename: "a.txt", ContentType: "text/plain", Content: []byte("attached")},
		},
	}

	buffer, err := sender.prepareMessage(testContext(), "alice@example.com", "<id@example.com>", email)

	require.NoError(t, err)
	message := buffer.String()
	assert.Contains(t, message, "multipart/mixed")
	assert.Contains(t, message, "multipart/alternative")
	assert.Contains(t, message, "text/html")
	assert.Contains(t, message, `filename="a.txt"`)
	assert.NotContains(t, message, "hidden@example.com", "bcc recipients stay off the headers")
}

func TestAllRecipientsDeduplicates(t *testing.T) {
	email := &OutgoingEmail{
		To:  []string{"a@x.io", "b@x.io"},
		Cc:  []string{"b@x.io", "c@x.io"},
		Bcc: []string{"c@x.io", "d@x.io"},
	}

	assert.Equal(t, []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io"}, allRecipients(email))
}

func TestFromAddressPrefersAccountName(t *testing.T) {
	account := &models.Account{AccountName: "sales@example.com", Username: "login-user"}
	assert.Equal(t, "sales@example.com", fromAddress(account))

	account = &models.Account{AccountName: "Sales Team", Username: "sales@example.com"}
	assert.Equal(t, "sales@example.com", fromAddress(account))
}

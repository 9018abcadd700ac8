package imap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGmailHost(t *testing.T) {
	assert.True(t, IsGmailHost("imap.gmail.com"))
	assert.True(t, IsGmailHost("IMAP.GMAIL.COM"))
	assert.False(t, IsGmailHost("imap.example.com"))
	assert.False(t, IsGmailHost("gmail.com.evil.net"))
}

func TestSelectFoldersGmailFoldsToAllMail(t *testing.T) {
	listed := []string{"INBOX", "[Gmail]/Sent Mail", "[Gmail]/All Mail", "[Gmail]/Spam"}

	folders := SelectFolders("imap.gmail.com", listed)

	assert.Equal(t, []string{"[Gmail]/All Mail"}, folders)
}

func TestSelectFoldersGmailGermanLocale(t *testing.T) {
	listed := []string{"INBOX", "[Gmail]/Alle Nachrichten", "[Gmail]/Gesendet"}

	folders := SelectFolders("imap.gmail.com", listed)

	assert.Equal(t, []string{"[Gmail]/Alle Nachrichten"}, folders)
}

func TestSelectFoldersGmailFallsBackToInbox(t *testing.T) {
	listed := []string{"INBOX", "[Gmail]/Sent Mail"}

	folders := SelectFolders("imap.gmail.com", listed)

	assert.Equal(t, []string{"INBOX"}, folders)
}

func TestSelectFoldersKeepsAllForOtherProviders(t *testing.T) {
	listed := []string{"INBOX", "Archive", "Sent"}

	folders := SelectFolders("mail.example.com", listed)

	assert.Equal(t, []string{"INBOX", "Archive", "Sent"}, folders)
}

func TestSelectFoldersDiscardsDelimiterLiterals(t *testing.T) {
	listed := []string{"INBOX", ".", "/", `\`, "Archive"}

	folders := SelectFolders("mail.example.com", listed)

	assert.Equal(t, []string{"INBOX", "Archive"}, folders)
}

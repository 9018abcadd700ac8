package imap

import (
	"strings"
)

// Gmail exposes a virtual folder that already contains every message; when
// it is present, enumerating the per-label folders would only produce
// duplicates. The localized names observed in the wild are matched here.
var gmailAllMailNames = []string{
	"[Gmail]/All Mail",
	"[Gmail]/Alle Nachrichten",
}

// hierarchy-delimiter literals that some servers leak into LIST output
var folderDelimiters = map[string]bool{
	".":  true,
	"/":  true,
	"\\": true,
}

// IsGmailHost reports whether the folder fold applies to this IMAP host
func IsGmailHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), "gmail.com")
}

// SelectFolders reduces a LIST response to the folders worth fetching.
// For Gmail hosts the enumeration folds to the single All-Mail folder,
// with INBOX as the fallback; every other provider keeps all folders minus
// delimiter artefacts.
func SelectFolders(host string, listed []string) []string {
	if IsGmailHost(host) {
		for _, name := range listed {
			for _, allMail := range gmailAllMailNames {
				if strings.EqualFold(name, allMail) {
					return []string{name}
				}
			}
		}
		return []string{"INBOX"}
	}

	var folders []string
	for _, name := range listed {
		if name == "" || folderDelimiters[name] {
			continue
		}
		folders = append(folders, name)
	}
	return folders
}

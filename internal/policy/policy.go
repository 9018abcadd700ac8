package policy

import (
	"strings"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/internal/models"
)

// View is the effective storage and extraction policy for one account:
// the value-type merge of the global settings with the account overrides.
// It is never persisted.
type View struct {
	StoreTextOnly     bool
	MaxAttachmentSize int64
	ExtractPDFText    bool
	ExtractDocxText   bool
	ExtractImageText  bool
	ExtractOtherText  bool
}

// Resolve merges the global extraction settings with one account's
// overrides. The merge is "global stronger negative": a flag disabled
// globally stays disabled no matter what the account says, while an account
// may always disable what is globally enabled. For the size limit the
// smaller value wins. Unset overrides inherit the global value.
func Resolve(global *config.ExtractionConfig, account *models.Account) View {
	view := View{
		StoreTextOnly:     global.StoreTextOnly,
		MaxAttachmentSize: global.MaxAttachmentSizeText,
		ExtractPDFText:    global.ExtractPDFText,
		ExtractDocxText:   global.ExtractDocxText,
		ExtractImageText:  global.ExtractImageText,
		ExtractOtherText:  global.ExtractOtherText,
	}

	if account == nil {
		return view
	}

	view.StoreTextOnly = mergeFlag(global.StoreTextOnly, account.StoreTextOnly)
	view.ExtractPDFText = mergeFlag(global.ExtractPDFText, account.ExtractPDFText)
	view.ExtractDocxText = mergeFlag(global.ExtractDocxText, account.ExtractDocxText)
	view.ExtractImageText = mergeFlag(global.ExtractImageText, account.ExtractImageText)
	view.ExtractOtherText = mergeFlag(global.ExtractOtherText, account.ExtractOtherText)

	if account.MaxAttachmentSize != nil && *account.MaxAttachmentSize < view.MaxAttachmentSize {
		view.MaxAttachmentSize = *account.MaxAttachmentSize
	}

	return view
}

func mergeFlag(global bool, override *bool) bool {
	if override == nil {
		return global
	}
	return global && *override
}

// ShouldExtractText selects the per-family flag for a MIME type
func ShouldExtractText(view View, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	switch {
	case mimeType == "application/pdf":
		return view.ExtractPDFText
	case mimeType == "application/msword",
		mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return view.ExtractDocxText
	case strings.HasPrefix(mimeType, "image/"):
		return view.ExtractImageText
	case strings.HasPrefix(mimeType, "text/"),
		mimeType == "application/json",
		mimeType == "application/xml",
		mimeType == "application/csv",
		mimeType == "application/rtf":
		return view.ExtractOtherText
	default:
		return false
	}
}

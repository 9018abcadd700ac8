package processor

import (
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/policy"
	"github.com/mailvault/mailvault/internal/utils"
	"github.com/mailvault/mailvault/services/extractor"
)

// collectAttachmentParts gathers every part that should become an
// attachment row. Inline images and uncategorized binary parts count too:
// a part qualifies when it carries a filename, an attachment disposition,
// or a binary top-level media type.
func collectAttachmentParts(env *enmime.Envelope) []*enmime.Part {
	var parts []*enmime.Part
	seen := make(map[*enmime.Part]bool)

	for _, group := range [][]*enmime.Part{env.Attachments, env.Inlines, env.OtherParts} {
		for _, part := range group {
			if part == nil || seen[part] {
				continue
			}
			seen[part] = true
			if isAttachmentPart(part) {
				parts = append(parts, part)
			}
		}
	}

	return parts
}

func isAttachmentPart(part *enmime.Part) bool {
	if part.FileName != "" {
		return true
	}
	if strings.EqualFold(part.Disposition, "attachment") {
		return true
	}

	mediaType := strings.ToLower(part.ContentType)
	if idx := strings.Index(mediaType, "/"); idx > 0 {
		mediaType = mediaType[:idx]
	}
	switch mediaType {
	case "image", "audio", "video", "application":
		return true
	}
	return false
}

// buildAttachment canonicalizes one MIME part into an attachment row.
// Empty payloads are dropped. A part without a filename is named after the
// owning message before sanitizing. Text extraction runs only when the
// effective policy allows the part's family and the payload fits the size
// limit; a nil TextContent means extraction was skipped or unsupported,
// while an empty string means a decoder ran and produced nothing.
func buildAttachment(
	part *enmime.Part,
	messageID string,
	subject string,
	view policy.View,
	ex *extractor.Service,
	log logger.Logger,
) *models.EmailAttachment {
	if len(part.Content) == 0 {
		if log != nil {
			log.Warnf("dropping empty attachment part %q (%s)", part.FileName, part.ContentType)
		}
		return nil
	}

	filename := part.FileName
	if filename == "" {
		filename = fmt.Sprintf("attachment_%s_unknown", messageID)
	}

	attachment := &models.EmailAttachment{
		Filename:    utils.ClampString(utils.SanitizeFilename(filename, subject), 255),
		ContentType: utils.ClampString(part.ContentType, 255),
		ContentID:   utils.ClampString(strings.Trim(part.ContentID, "<>"), 255),
		Size:        int64(len(part.Content)),
	}

	if ex == nil || !policy.ShouldExtractText(view, part.ContentType) {
		return attachment
	}
	if view.MaxAttachmentSize > 0 && attachment.Size > view.MaxAttachmentSize {
		if log != nil {
			log.Warnf("skipping text extraction for %q: %d bytes exceeds limit %d",
				attachment.Filename, attachment.Size, view.MaxAttachmentSize)
		}
		return attachment
	}

	text, handled := ex.Extract(part.Content, part.ContentType)
	if handled {
		attachment.TextContent = &text
	}

	return attachment
}

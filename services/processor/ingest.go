package processor

import (
	"bytes"
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/policy"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/internal/utils"
	"github.com/mailvault/mailvault/services/extractor"
	"github.com/mailvault/mailvault/services/imap"
)

const addressMaxLen = 500

// ingestBatch canonicalizes and stores one fetch batch. Each message is its
// own storage transaction; a bad message is skipped and the rest of the
// batch still lands. The account counter advances by the full batch size so
// it tracks work done, not rows created.
func (s *Scheduler) ingestBatch(ctx context.Context, account models.Account, view policy.View, batch []imap.RawMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Scheduler.ingestBatch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.Int("batch.size", len(batch)))

	var created int
	for _, raw := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		email, attachments, err := parseMessage(raw, account, view, s.extractor, s.log)
		if err != nil {
			s.log.Warnf("[account %d][%s] skipping unparseable uid %d: %v", account.ID, raw.Folder, raw.UID, err)
			continue
		}

		inserted, err := s.repos.EmailRepository.CreateWithAttachments(ctx, email, attachments)
		if err != nil {
			tracing.TraceErr(span, err)
			return errors.Wrapf(err, "storing uid %d", raw.UID)
		}
		if !inserted {
			continue
		}
		created++

		if s.publisher != nil {
			if err := s.publisher.PublishEmailIngested(ctx, email); err != nil {
				s.log.Warnf("[account %d] failed to publish ingest event for %s: %v", account.ID, email.MessageID, err)
			}
		}
	}

	span.LogFields(tracingLog.Int("batch.created", created))

	if err := s.repos.AccountRepository.IncrementProcessed(ctx, account.ID, len(batch)); err != nil {
		s.log.Warnf("[account %d] failed to advance processed counter: %v", account.ID, err)
	}

	return nil
}

// parseMessage canonicalizes one raw RFC 822 message into storage rows.
// Missing Message-ID headers are replaced with a synthetic identity that is
// stable across polls; an unparseable Date falls back to the current time.
func parseMessage(
	raw imap.RawMessage,
	account models.Account,
	view policy.View,
	ex *extractor.Service,
	log logger.Logger,
) (*models.Email, []*models.EmailAttachment, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw.Raw))
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing mime envelope")
	}

	messageID := utils.NormalizeMessageID(env.GetHeader("Message-Id"))
	if messageID == "" {
		messageID = utils.SynthesizeMessageID(raw.UID, account.ID)
	}

	emailDate := time.Now().UTC()
	if rawDate := env.GetHeader("Date"); rawDate != "" {
		if parsed, dateErr := mail.ParseDate(rawDate); dateErr == nil {
			emailDate = parsed.UTC()
		}
	}

	// enmime backfills Text with its own HTML downconversion when a message
	// carries no text/plain part; the canonical plain body for HTML-only
	// mail comes from the tag-stripping reduction instead
	bodyPlain := env.Text
	if env.HTML != "" && !hasPlainTextPart(env) {
		bodyPlain = extractor.HTMLToText(env.HTML)
	}

	bodyHTML := ""
	if !view.StoreTextOnly {
		bodyHTML = env.HTML
	}

	email := &models.Email{
		SMTPConfigID: account.ID,
		MessageID:    utils.ClampString(messageID, 255),
		Sender:       utils.ClampString(env.GetHeader("From"), addressMaxLen),
		Recipient:    utils.ClampString(env.GetHeader("To"), addressMaxLen),
		Subject:      env.GetHeader("Subject"),
		EmailDate:    emailDate,
		BodyPlain:    bodyPlain,
		BodyHTML:     bodyHTML,
		ProcessedAt:  time.Now().UTC(),
	}

	attachments := buildAttachments(env, email, view, ex, log)

	return email, attachments, nil
}

func hasPlainTextPart(env *enmime.Envelope) bool {
	if env.Root == nil {
		return false
	}
	return env.Root.BreadthMatchFirst(func(part *enmime.Part) bool {
		return part.ContentType == "text/plain" &&
			!strings.EqualFold(part.Disposition, "attachment")
	}) != nil
}

func buildAttachments(
	env *enmime.Envelope,
	email *models.Email,
	view policy.View,
	ex *extractor.Service,
	log logger.Logger,
) []*models.EmailAttachment {
	var attachments []*models.EmailAttachment
	for _, part := range collectAttachmentParts(env) {
		attachment := buildAttachment(part, email.MessageID, email.Subject, view, ex, log)
		if attachment == nil {
			continue
		}
		attachments = append(attachments, attachment)
	}

	return attachments
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"gorm.io/gorm"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/internal/utils"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{
		db: db,
	}
}

// CreateWithAttachments inserts one message plus all of its attachment rows
// as a single unit. The Message-ID pre-check makes re-polling idempotent:
// a duplicate is reported as (false, nil) and nothing is written.
func (r *emailRepository) CreateWithAttachments(ctx context.Context, email *models.Email, attachments []*models.EmailAttachment) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.CreateWithAttachments")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if email == nil {
		return false, ErrInvalidInput
	}

	email.MessageID = utils.NormalizeMessageID(email.MessageID)
	span.LogFields(tracingLog.String("message_id", email.MessageID))

	// Pre-check outside the insert transaction keeps the duplicate path
	// cheap; the unique index still backstops concurrent pollers
	existing := &models.Email{}
	err := r.db.WithContext(ctx).
		Where("message_id = ?", email.MessageID).
		First(existing).Error

	if err == nil {
		span.SetTag("duplicate", true)
		email.ID = existing.ID
		return false, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tracing.TraceErr(span, err)
		return false, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		email.AttachmentCount = len(attachments)

		if err := tx.Create(email).Error; err != nil {
			return err
		}

		for _, attachment := range attachments {
			attachment.EmailLogID = email.ID
			if err := tx.Create(attachment).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}

	span.LogFields(tracingLog.Int("attachments", len(attachments)))
	return true, nil
}

func (r *emailRepository) GetByID(ctx context.Context, id uint, includeAttachments bool) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	query := r.db.WithContext(ctx)
	if includeAttachments {
		query = query.Preload("Attachments")
	}

	var email models.Email
	if err := query.Where("id = ?", id).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	messageID = utils.NormalizeMessageID(messageID)

	var email models.Email
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

// List returns stored emails newest-first with the total count
func (r *emailRepository) List(ctx context.Context, skip, limit int) ([]models.Email, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}

	var emails []models.Email
	var count int64

	if err := r.db.WithContext(ctx).Model(&models.Email{}).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Order("email_date DESC").
		Limit(limit).
		Offset(skip).
		Find(&emails).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	return emails, count, nil
}

// Delete removes a message; its attachments go with it
func (r *emailRepository) Delete(ctx context.Context, id uint) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var email models.Email
		if err := tx.Where("id = ?", id).First(&email).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := tx.Where("email_log_id = ?", id).Delete(&models.EmailAttachment{}).Error; err != nil {
			tracing.TraceErr(span, err)
			return err
		}

		if err := tx.Delete(&email).Error; err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		return nil
	})
}

// DeleteOlderThan purges messages whose origin date predates the cutoff.
// Used by the retention cron.
func (r *emailRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.DeleteOlderThan")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.LogFields(tracingLog.String("cutoff", cutoff.Format(time.RFC3339)))

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.Email{}).
			Where("email_date < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("email_log_id IN ?", ids).Delete(&models.EmailAttachment{}).Error; err != nil {
			return err
		}

		result := tx.Where("id IN ?", ids).Delete(&models.Email{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	return deleted, nil
}

func (r *emailRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Email{}).Count(&count).Error
	return count, err
}

func (r *emailRepository) CountByAccount(ctx context.Context, accountID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("smtp_config_id = ?", accountID).
		Count(&count).Error
	return count, err
}

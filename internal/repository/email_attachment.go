package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
)

type emailAttachmentRepository struct {
	db *gorm.DB
}

func NewEmailAttachmentRepository(db *gorm.DB) interfaces.EmailAttachmentRepository {
	return &emailAttachmentRepository{
		db: db,
	}
}

func (r *emailAttachmentRepository) ListByEmail(ctx context.Context, emailID uint) ([]models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.ListByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var attachments []models.EmailAttachment
	if err := r.db.WithContext(ctx).
		Where("email_log_id = ?", emailID).
		Order("id ASC").
		Find(&attachments).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attachments, nil
}

func (r *emailAttachmentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EmailAttachment{}).Count(&count).Error
	return count, err
}

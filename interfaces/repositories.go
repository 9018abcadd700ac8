package interfaces

import (
	"context"
	"time"

	"github.com/mailvault/mailvault/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	ListEnabled(ctx context.Context) ([]models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id uint) error
	UpdateLastCheck(ctx context.Context, id uint, checkedAt time.Time) error
	IncrementProcessed(ctx context.Context, id uint, delta int) error
	Count(ctx context.Context) (int64, error)
	CountEnabled(ctx context.Context) (int64, error)
}

type EmailRepository interface {
	// CreateWithAttachments inserts the message and its attachment rows in
	// one transaction. It reports false without error when the message id
	// already exists.
	CreateWithAttachments(ctx context.Context, email *models.Email, attachments []*models.EmailAttachment) (bool, error)
	GetByID(ctx context.Context, id uint, includeAttachments bool) (*models.Email, error)
	GetByMessageID(ctx context.Context, messageID string) (*models.Email, error)
	List(ctx context.Context, skip, limit int) ([]models.Email, int64, error)
	Delete(ctx context.Context, id uint) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountByAccount(ctx context.Context, accountID uint) (int64, error)
}

type EmailAttachmentRepository interface {
	ListByEmail(ctx context.Context, emailID uint) ([]models.EmailAttachment, error)
	Count(ctx context.Context) (int64, error)
}

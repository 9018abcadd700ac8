package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) interfaces.AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if account == nil || account.Name == "" {
		return ErrInvalidInput
	}

	// Name uniqueness is checked up front so the caller gets a typed error
	// instead of a driver-specific constraint violation
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("name = ?", account.Name).
		Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if count > 0 {
		span.SetTag("duplicate", true)
		return ErrDuplicateName
	}

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) List(ctx context.Context) ([]models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []models.Account
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&accounts).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) ListEnabled(ctx context.Context) ([]models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.ListEnabled")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []models.Account
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("id ASC").
		Find(&accounts).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) Update(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if account == nil || account.ID == 0 {
		return ErrInvalidInput
	}

	// Renames must not collide with another account
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("name = ? AND id <> ?", account.Name, account.ID).
		Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if count > 0 {
		return ErrDuplicateName
	}

	account.UpdatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).Save(account)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}

	return nil
}

// Delete removes an account unless any stored email still refers to it.
// Referential integrity preserves ingestion history.
func (r *accountRepository) Delete(ctx context.Context, id uint) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if err := tx.Where("id = ?", id).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			tracing.TraceErr(span, err)
			return err
		}

		var referenced int64
		if err := tx.Model(&models.Email{}).
			Where("smtp_config_id = ?", id).
			Count(&referenced).Error; err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		if referenced > 0 {
			span.SetTag("referenced_emails", referenced)
			return ErrAccountReferenced
		}

		if err := tx.Delete(&account).Error; err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		return nil
	})
}

// UpdateLastCheck runs in its own short transaction; the poller calls it
// unconditionally on exit.
func (r *accountRepository) UpdateLastCheck(ctx context.Context, id uint, checkedAt time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.UpdateLastCheck")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Update("last_check", checkedAt).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

// IncrementProcessed advances the running total by the realised batch size.
// The counter is monotone: committed increments survive later batch failures.
func (r *accountRepository) IncrementProcessed(ctx context.Context, id uint, delta int) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.IncrementProcessed")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if delta <= 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Update("total_emails_processed", gorm.Expr("total_emails_processed + ?", delta)).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *accountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Count(&count).Error
	return count, err
}

func (r *accountRepository) CountEnabled(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("enabled = ?", true).
		Count(&count).Error
	return count, err
}

package search

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
)

var (
	ErrInvalidQuery  = errors.New("invalid search query")
	ErrInvalidFilter = errors.New("invalid search filter")
)

const (
	defaultLimit = 50
	maxLimit     = 100
	maxQueryLen  = 500
)

// sortable whitelists the ORDER BY columns so the sort parameter can never
// inject arbitrary SQL
var sortable = map[string]string{
	"email_date":   "email_date",
	"processed_at": "processed_at",
	"sender":       "sender",
	"subject":      "subject",
}

// searchable whitelists the fields a query can be restricted to
var searchable = map[string]bool{
	"sender":     true,
	"subject":    true,
	"body":       true,
	"attachment": true,
}

const attachmentMatchSQL = `EXISTS (
	SELECT 1 FROM email_attachments
	WHERE email_attachments.email_log_id = email_logs.id
	AND email_attachments.text_content ~* ?)`

// Params selects and orders a search. A nil Query lists metadata only; a
// present query, even an empty string, goes through validation. Field
// restricts the regex to one column; without it the query matches sender,
// subject and body, plus attachment text when SearchAttachments is set.
type Params struct {
	Query             *string
	Field             string
	AccountID         *uint
	Since             *time.Time
	Until             *time.Time
	HasAttachments    *bool
	Participant       string
	FromMe            bool
	ToMe              bool
	SearchAttachments bool
	SortBy            string
	SortDesc          bool
	Skip              int
	Limit             int
}

// Result is one matched message with its match context
type Result struct {
	Email        models.Email `json:"email"`
	MatchedField string       `json:"matched_field"`
	Preview      string       `json:"preview"`
}

// Service runs regex searches over stored message content. Matching happens
// in the database with case-insensitive POSIX regexes; the matched field and
// preview are derived afterwards from the loaded rows.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ValidateQuery rejects queries that are empty, oversized, contain NUL
// bytes or do not compile as a regular expression
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return errors.Wrap(ErrInvalidQuery, "query must not be empty")
	}
	if len(query) > maxQueryLen {
		return errors.Wrapf(ErrInvalidQuery, "query exceeds %d characters", maxQueryLen)
	}
	if strings.ContainsRune(query, '\x00') {
		return errors.Wrap(ErrInvalidQuery, "query contains NUL byte")
	}
	if _, err := regexp.Compile(query); err != nil {
		return errors.Wrapf(ErrInvalidQuery, "query does not compile: %v", err)
	}
	return nil
}

// Search executes the query and annotates each hit with the field that
// matched and a preview window. With no query it degrades to a metadata
// listing under the same filters.
func (s *Service) Search(ctx context.Context, params Params) ([]Result, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SearchService.Search")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if params.Field != "" && !searchable[params.Field] {
		err := errors.Wrapf(ErrInvalidFilter, "unknown field %q", params.Field)
		tracing.TraceErr(span, err)
		return nil, 0, err
	}
	if (params.FromMe || params.ToMe) && params.AccountID == nil {
		err := errors.Wrap(ErrInvalidFilter, "from_me and to_me require smtp_config_id")
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	query := s.db.WithContext(ctx).Model(&models.Email{})

	if params.AccountID != nil {
		query = query.Where("smtp_config_id = ?", *params.AccountID)
	}
	if params.Since != nil {
		query = query.Where("email_date >= ?", *params.Since)
	}
	if params.Until != nil {
		query = query.Where("email_date <= ?", *params.Until)
	}
	if params.HasAttachments != nil {
		if *params.HasAttachments {
			query = query.Where("attachment_count > 0")
		} else {
			query = query.Where("attachment_count = 0")
		}
	}
	if params.Participant != "" {
		needle := "%" + escapeLike(params.Participant) + "%"
		query = query.Where("(sender ILIKE ? OR recipient ILIKE ?)", needle, needle)
	}

	if params.FromMe || params.ToMe {
		username, err := s.accountUsername(ctx, *params.AccountID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, 0, err
		}
		me := "%" + escapeLike(username) + "%"
		if params.FromMe {
			query = query.Where("sender ILIKE ?", me)
		}
		if params.ToMe {
			query = query.Where("recipient ILIKE ?", me)
		}
	}

	var pattern string
	if params.Query != nil {
		if err := ValidateQuery(*params.Query); err != nil {
			tracing.TraceErr(span, err)
			return nil, 0, err
		}
		pattern = *params.Query
		query = applyPattern(query, pattern, params.Field, params.SearchAttachments)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, errors.Wrap(err, "counting search results")
	}

	column, ok := sortable[params.SortBy]
	if !ok {
		column = "email_date"
	}
	direction := "ASC"
	if params.SortDesc {
		direction = "DESC"
	}

	var emails []models.Email
	err := query.
		Preload("Attachments").
		Order(column + " " + direction).
		Offset(params.Skip).
		Limit(limit).
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, errors.Wrap(err, "executing search")
	}

	span.LogFields(tracingLog.Int("results", len(emails)), tracingLog.Int64("total", total))

	results := make([]Result, 0, len(emails))
	for _, email := range emails {
		results = append(results, buildResult(email, pattern, params.Field, params.SearchAttachments))
	}

	return results, total, nil
}

// buildResult attaches the match context to one row. Rows from a filter-only
// listing carry the metadata label and no preview.
func buildResult(email models.Email, pattern, field string, searchAttachments bool) Result {
	result := Result{Email: email, MatchedField: "metadata"}
	if pattern != "" {
		result.MatchedField, result.Preview = annotate(&email, pattern, field, searchAttachments)
	}
	return result
}

// applyPattern attaches the regex predicate for one restricted field, or the
// OR across all fields when no restriction is given. The attachment arm is
// an EXISTS subquery so multi-attachment hits do not duplicate message rows.
func applyPattern(query *gorm.DB, pattern, field string, searchAttachments bool) *gorm.DB {
	switch field {
	case "sender":
		return query.Where("sender ~* ?", pattern)
	case "subject":
		return query.Where("subject ~* ?", pattern)
	case "body":
		return query.Where("body_plain ~* ?", pattern)
	case "attachment":
		return query.Where(attachmentMatchSQL, pattern)
	}

	if searchAttachments {
		return query.Where(
			"body_plain ~* ? OR subject ~* ? OR sender ~* ? OR "+attachmentMatchSQL,
			pattern, pattern, pattern, pattern,
		)
	}
	return query.Where(
		"body_plain ~* ? OR subject ~* ? OR sender ~* ?",
		pattern, pattern, pattern,
	)
}

func (s *Service) accountUsername(ctx context.Context, accountID uint) (string, error) {
	var account models.Account
	err := s.db.WithContext(ctx).First(&account, accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.Wrapf(ErrInvalidFilter, "smtp_config_id %d does not exist", accountID)
	}
	if err != nil {
		return "", errors.Wrap(err, "resolving account username")
	}
	return account.Username, nil
}

// escapeLike neutralizes LIKE metacharacters so a participant filter is a
// literal substring match
func escapeLike(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "%", `\%`)
	value = strings.ReplaceAll(value, "_", `\_`)
	return value
}

// annotate reports which field matched and a preview of the match context.
// An explicit field restriction is respected; otherwise fields are checked
// in priority order so a message matching in several places reports the
// most meaningful one.
func annotate(email *models.Email, pattern, field string, searchAttachments bool) (string, string) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return "", ""
	}

	if field != "" {
		if preview, ok := previewForField(email, re, field); ok {
			return field, preview
		}
		// the database matched but Go's regex dialect did not; fall back to
		// a body preview so the caller still gets context
		return field, previewWindow(email.BodyPlain, []int{0, 0})
	}

	if loc := re.FindStringIndex(email.BodyPlain); loc != nil {
		return "body", previewWindow(email.BodyPlain, loc)
	}
	if loc := re.FindStringIndex(email.Subject); loc != nil {
		return "subject", previewWindow(email.Subject, loc)
	}
	if loc := re.FindStringIndex(email.Sender); loc != nil {
		return "sender", previewWindow(email.Sender, loc)
	}
	if searchAttachments {
		if preview, ok := previewForField(email, re, "attachment"); ok {
			return "attachment", preview
		}
	}

	return "body", previewWindow(email.BodyPlain, []int{0, 0})
}

func previewForField(email *models.Email, re *regexp.Regexp, field string) (string, bool) {
	switch field {
	case "sender":
		if loc := re.FindStringIndex(email.Sender); loc != nil {
			return previewWindow(email.Sender, loc), true
		}
	case "subject":
		if loc := re.FindStringIndex(email.Subject); loc != nil {
			return previewWindow(email.Subject, loc), true
		}
	case "body":
		if loc := re.FindStringIndex(email.BodyPlain); loc != nil {
			return previewWindow(email.BodyPlain, loc), true
		}
	case "attachment":
		for _, attachment := range email.Attachments {
			if attachment.TextContent == nil {
				continue
			}
			if loc := re.FindStringIndex(*attachment.TextContent); loc != nil {
				return previewWindow(*attachment.TextContent, loc), true
			}
		}
	}
	return "", false
}

package search

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/utils"
)

func TestValidateQueryAcceptsPlainTerms(t *testing.T) {
	assert.NoError(t, ValidateQuery("invoice"))
	assert.NoError(t, ValidateQuery("invoice|receipt"))
	assert.NoError(t, ValidateQuery(`deadline.*friday`))
}

func TestValidateQueryRejectsEmpty(t *testing.T) {
	err := ValidateQuery("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuery))

	err = ValidateQuery("   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuery))
}

func TestValidateQueryRejectsOversized(t *testing.T) {
	err := ValidateQuery(strings.Repeat("a", 501))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuery))

	assert.NoError(t, ValidateQuery(strings.Repeat("a", 500)))
}

func TestValidateQueryRejectsNulByte(t *testing.T) {
	err := ValidateQuery("inv\x00oice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuery))
}

func TestValidateQueryRejectsBrokenRegex(t *testing.T) {
	err := ValidateQuery("(unclosed")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuery))
}

func TestAnnotateFieldPriority(t *testing.T) {
	email := &models.Email{
		Sender:    "invoice@example.com",
		Subject:   "your invoice",
		BodyPlain: "the invoice is attached",
		Attachments: []models.EmailAttachment{
			{TextContent: utils.StringPtr("invoice total 100")},
		},
	}

	field, preview := annotate(email, "invoice", "", true)
	assert.Equal(t, "body", field)
	assert.Contains(t, preview, "the invoice is attached")

	email.BodyPlain = "see attached"
	field, _ = annotate(email, "invoice", "", true)
	assert.Equal(t, "subject", field)

	email.Subject = "hello"
	field, _ = annotate(email, "invoice", "", true)
	assert.Equal(t, "sender", field)

	email.Sender = "alice@example.com"
	field, preview = annotate(email, "invoice", "", true)
	assert.Equal(t, "attachment", field)
	assert.Contains(t, preview, "invoice total 100")
}

func TestAnnotateRespectsExplicitField(t *testing.T) {
	email := &models.Email{
		Sender:    "invoice@example.com",
		Subject:   "your invoice",
		BodyPlain: "the invoice is attached",
	}

	field, preview := annotate(email, "invoice", "subject", true)

	assert.Equal(t, "subject", field)
	assert.Contains(t, preview, "your invoice")
}

func TestAnnotateExplicitFieldFallsBackToBodyPreview(t *testing.T) {
	email := &models.Email{
		Sender:    "alice@example.com",
		BodyPlain: "quarterly numbers inside",
	}

	// the database dialect matched on sender but the term is gone by the
	// time we re-test; the label stays, the preview degrades to the body
	field, preview := annotate(email, "bob", "sender", true)

	assert.Equal(t, "sender", field)
	assert.Contains(t, preview, "quarterly numbers")
}

func TestAnnotateSkipsAttachmentsWhenNotSearched(t *testing.T) {
	email := &models.Email{
		BodyPlain: "see attached",
		Attachments: []models.EmailAttachment{
			{TextContent: utils.StringPtr("invoice total 100")},
		},
	}

	field, _ := annotate(email, "invoice", "", false)

	assert.Equal(t, "body", field)
}

func TestBuildResultLabelsFilterOnlyRowsAsMetadata(t *testing.T) {
	email := models.Email{Subject: "weekly digest", BodyPlain: "all the news"}

	result := buildResult(email, "", "", false)

	assert.Equal(t, "metadata", result.MatchedField)
	assert.Equal(t, "", result.Preview)
}

func TestAnnotateIsCaseInsensitive(t *testing.T) {
	email := &models.Email{BodyPlain: "URGENT Invoice enclosed"}

	field, preview := annotate(email, "invoice", "", true)

	assert.Equal(t, "body", field)
	assert.Contains(t, preview, "Invoice")
}

func TestSearchRejectsUnknownField(t *testing.T) {
	service := NewService(nil)

	_, _, err := service.Search(context.Background(), Params{
		Query: utils.StringPtr("invoice"),
		Field: "recipient",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFilter))
}

func TestSearchRequiresAccountForOwnershipFilters(t *testing.T) {
	service := NewService(nil)

	_, _, err := service.Search(context.Background(), Params{FromMe: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFilter))

	_, _, err = service.Search(context.Background(), Params{ToMe: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFilter))
}

func TestEscapeLikeNeutralizesMetacharacters(t *testing.T) {
	assert.Equal(t, "alice@example.com", escapeLike("alice@example.com"))
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
}

func TestPreviewWindowShortText(t *testing.T) {
	preview := previewWindow("short match here", []int{6, 11})

	assert.Equal(t, "short match here", preview)
}

func TestPreviewWindowClipsLongText(t *testing.T) {
	text := strings.Repeat("x", 300) + " needle " + strings.Repeat("y", 300)
	loc := []int{301, 307}

	preview := previewWindow(text, loc)

	assert.Contains(t, preview, "needle")
	assert.True(t, strings.HasPrefix(preview, "…"))
	assert.True(t, strings.HasSuffix(preview, "…"))
	assert.LessOrEqual(t, len([]rune(preview)), previewLen+2)
}

func TestPreviewWindowMatchAtStart(t *testing.T) {
	text := "needle " + strings.Repeat("y", 300)

	preview := previewWindow(text, []int{0, 6})

	assert.True(t, strings.HasPrefix(preview, "needle"))
	assert.True(t, strings.HasSuffix(preview, "…"))
}

func TestPreviewWindowRespectsRuneBoundaries(t *testing.T) {
	text := strings.Repeat("ü", 300)

	preview := previewWindow(text, []int{250, 252})

	assert.True(t, strings.HasPrefix(strings.Trim(preview, "…"), "ü"))
	for _, r := range preview {
		assert.NotEqual(t, '�', r)
	}
}

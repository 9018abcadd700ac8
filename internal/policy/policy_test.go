package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/utils"
)

func allEnabledGlobal() *config.ExtractionConfig {
	return &config.ExtractionConfig{
		StoreTextOnly:         true,
		MaxAttachmentSize:     10485760,
		MaxAttachmentSizeText: 10485760,
		ExtractPDFText:        true,
		ExtractDocxText:       true,
		ExtractImageText:      true,
		ExtractOtherText:      true,
	}
}

func TestResolveInheritsGlobalWhenOverridesUnset(t *testing.T) {
	global := allEnabledGlobal()
	account := &models.Account{}

	view := Resolve(global, account)

	assert.True(t, view.StoreTextOnly)
	assert.True(t, view.ExtractPDFText)
	assert.True(t, view.ExtractDocxText)
	assert.True(t, view.ExtractImageText)
	assert.True(t, view.ExtractOtherText)
	assert.Equal(t, int64(10485760), view.MaxAttachmentSize)
}

func TestResolveAccountMayDisable(t *testing.T) {
	global := allEnabledGlobal()
	account := &models.Account{
		ExtractPDFText: utils.BoolPtr(false),
	}

	view := Resolve(global, account)

	assert.False(t, view.ExtractPDFText)
	assert.True(t, view.ExtractDocxText)
}

func TestResolveGlobalNegativeDominates(t *testing.T) {
	global := allEnabledGlobal()
	global.ExtractPDFText = false
	global.ExtractImageText = false

	account := &models.Account{
		ExtractPDFText:   utils.BoolPtr(true),
		ExtractImageText: utils.BoolPtr(true),
	}

	view := Resolve(global, account)

	// a feature disabled globally can never be re-enabled per account
	assert.False(t, view.ExtractPDFText)
	assert.False(t, view.ExtractImageText)
}

func TestResolveSmallerSizeLimitWins(t *testing.T) {
	global := allEnabledGlobal()

	smaller := &models.Account{MaxAttachmentSize: utils.Int64Ptr(1024)}
	larger := &models.Account{MaxAttachmentSize: utils.Int64Ptr(99999999)}

	assert.Equal(t, int64(1024), Resolve(global, smaller).MaxAttachmentSize)
	assert.Equal(t, int64(10485760), Resolve(global, larger).MaxAttachmentSize)
}

func TestResolveNilAccount(t *testing.T) {
	view := Resolve(allEnabledGlobal(), nil)

	assert.True(t, view.ExtractPDFText)
	assert.Equal(t, int64(10485760), view.MaxAttachmentSize)
}

func TestShouldExtractTextFamilies(t *testing.T) {
	view := View{
		ExtractPDFText:   true,
		ExtractDocxText:  true,
		ExtractImageText: true,
		ExtractOtherText: true,
	}

	testCases := []struct {
		mimeType string
		expected bool
	}{
		{"application/pdf", true},
		{"application/msword", true},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{"image/png", true},
		{"image/tiff", true},
		{"text/plain", true},
		{"text/csv", true},
		{"application/json", true},
		{"application/xml", true},
		{"application/csv", true},
		{"application/rtf", true},
		{"application/zip", false},
		{"video/mp4", false},
		{"application/octet-stream", false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, ShouldExtractText(view, tc.mimeType), tc.mimeType)
	}
}

func TestShouldExtractTextRespectsFlags(t *testing.T) {
	view := View{ExtractPDFText: false, ExtractOtherText: true}

	assert.False(t, ShouldExtractText(view, "application/pdf"))
	assert.True(t, ShouldExtractText(view, "text/plain"))
}

func TestShouldExtractTextNormalizesMime(t *testing.T) {
	view := View{ExtractOtherText: true}

	assert.True(t, ShouldExtractText(view, "TEXT/PLAIN; charset=utf-8"))
	assert.True(t, ShouldExtractText(view, "  text/html "))
}

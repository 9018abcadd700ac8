package config

import (
	"testing"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessorConfigDefaults(t *testing.T) {
	cfg := &ProcessorConfig{}

	err := env.Parse(cfg)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.CheckInterval)
	assert.Equal(t, 60, cfg.ErrorRetryInterval)
	assert.Equal(t, 50, cfg.MaxEmailsPerBatch)
}

func TestExtractionConfigDefaults(t *testing.T) {
	cfg := &ExtractionConfig{}

	err := env.Parse(cfg)
	require.NoError(t, err)

	assert.True(t, cfg.StoreTextOnly)
	assert.True(t, cfg.ExtractPDFText)
	assert.True(t, cfg.ExtractDocxText)
	assert.True(t, cfg.ExtractImageText)
	assert.True(t, cfg.ExtractOtherText)
	assert.Equal(t, int64(10485760), cfg.MaxAttachmentSize)
	assert.Equal(t, int64(10485760), cfg.MaxAttachmentSizeText)
}

func TestExtractionConfigOverrides(t *testing.T) {
	t.Setenv("EMAILSERVER_EXTRACT_PDF_TEXT", "false")
	t.Setenv("EMAILSERVER_MAX_ATTACHMENT_SIZE", "1024")

	cfg := &ExtractionConfig{}

	err := env.Parse(cfg)
	require.NoError(t, err)

	assert.False(t, cfg.ExtractPDFText)
	assert.Equal(t, int64(1024), cfg.MaxAttachmentSize)
}

func TestAppConfigDefaults(t *testing.T) {
	cfg := &AppConfig{}

	err := env.Parse(cfg)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.APIHost)
	assert.Equal(t, "8000", cfg.APIPort)
}

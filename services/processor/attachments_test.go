package processor

import (
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailvault/mailvault/services/extractor"
)

func TestBuildAttachmentDropsEmptyPayload(t *testing.T) {
	part := &enmime.Part{
		FileName:    "empty.txt",
		ContentType: "text/plain",
	}

	attachment := buildAttachment(part, "m1@test", "subject", defaultView(), nil, nil)

	assert.Nil(t, attachment)
}

func TestBuildAttachmentNamesUnnamedPartsAfterMessage(t *testing.T) {
	part := &enmime.Part{
		ContentType: "application/octet-stream",
		Content:     []byte{0x01, 0x02},
	}

	attachment := buildAttachment(part, "m1@test", "Weekly Report", defaultView(), nil, nil)

	require.NotNil(t, attachment)
	assert.Equal(t, "attachment_m1@test_unknown", attachment.Filename)
	assert.Equal(t, int64(2), attachment.Size)
}

func TestBuildAttachmentFallsBackToSubjectFilename(t *testing.T) {
	part := &enmime.Part{
		FileName:    "???",
		ContentType: "application/octet-stream",
		Content:     []byte{0x01, 0x02},
	}

	attachment := buildAttachment(part, "m1@test", "Weekly Report", defaultView(), nil, nil)

	require.NotNil(t, attachment)
	assert.Equal(t, "Weekly_Report", attachment.Filename)
}

func TestBuildAttachmentStripsContentIDBrackets(t *testing.T) {
	part := &enmime.Part{
		FileName:    "logo.png",
		ContentType: "image/png",
		ContentID:   "<logo@local>",
		Content:     []byte{0x89, 0x50},
	}

	attachment := buildAttachment(part, "m1@test", "", defaultView(), nil, nil)

	require.NotNil(t, attachment)
	assert.Equal(t, "logo@local", attachment.ContentID)
}

func TestBuildAttachmentSkipsExtractionOverSizeLimit(t *testing.T) {
	part := &enmime.Part{
		FileName:    "big.txt",
		ContentType: "text/plain",
		Content:     []byte("0123456789"),
	}

	view := defaultView()
	view.MaxAttachmentSize = 5

	attachment := buildAttachment(part, "m1@test", "", view, extractor.NewService(nil), nil)

	require.NotNil(t, attachment)
	assert.Nil(t, attachment.TextContent, "oversize payloads keep their record but skip extraction")
}

func TestBuildAttachmentHonorsDisabledFamily(t *testing.T) {
	part := &enmime.Part{
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Content:     []byte("hello"),
	}

	view := defaultView()
	view.ExtractOtherText = false

	attachment := buildAttachment(part, "m1@test", "", view, extractor.NewService(nil), nil)

	require.NotNil(t, attachment)
	assert.Nil(t, attachment.TextContent)
}

func TestIsAttachmentPartClassification(t *testing.T) {
	assert.True(t, isAttachmentPart(&enmime.Part{FileName: "a.pdf"}))
	assert.True(t, isAttachmentPart(&enmime.Part{Disposition: "attachment"}))
	assert.True(t, isAttachmentPart(&enmime.Part{ContentType: "image/png"}))
	assert.True(t, isAttachmentPart(&enmime.Part{ContentType: "application/zip"}))
	assert.False(t, isAttachmentPart(&enmime.Part{ContentType: "text/plain"}))
}

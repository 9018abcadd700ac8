package models

import (
	"time"
)

// EmailAttachment is one file part of an Email. Raw bytes are never
// persisted; only metadata and the extracted UTF-8 text survive ingestion.
type EmailAttachment struct {
	ID         uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EmailLogID uint `gorm:"column:email_log_id;index;not null" json:"email_log_id"`

	Filename    string `gorm:"column:filename;type:varchar(255)" json:"filename"`
	ContentType string `gorm:"column:content_type;type:varchar(255)" json:"content_type"`
	ContentID   string `gorm:"column:content_id;type:varchar(255)" json:"content_id"`
	Size        int64  `gorm:"column:size;not null;default:0" json:"size"`

	// Null when extraction was disabled by policy or the decoder failed
	TextContent *string `gorm:"column:text_content;type:text" json:"text_content"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"created_at"`
}

func (EmailAttachment) TableName() string {
	return "email_attachments"
}

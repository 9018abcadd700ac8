package models

import (
	"time"
)

// Email is one canonicalized message. Uniqueness is on the origin
// Message-ID, which makes re-polling the same folder a no-op.
type Email struct {
	ID           uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SMTPConfigID uint   `gorm:"column:smtp_config_id;index;not null" json:"smtp_config_id"`
	MessageID    string `gorm:"column:message_id;uniqueIndex;type:varchar(255);not null" json:"message_id"`

	// Headers, clamped at ingestion
	Sender    string    `gorm:"column:sender;type:varchar(500)" json:"sender"`
	Recipient string    `gorm:"column:recipient;type:varchar(500)" json:"recipient"`
	Subject   string    `gorm:"column:subject;type:text" json:"subject"`
	EmailDate time.Time `gorm:"column:email_date;type:timestamp;index" json:"email_date"`

	// Bodies
	BodyPlain string `gorm:"column:body_plain;type:text" json:"body_plain"`
	BodyHTML  string `gorm:"column:body_html;type:text" json:"body_html"`

	// Bookkeeping
	AttachmentCount int       `gorm:"column:attachment_count;not null;default:0" json:"attachment_count"`
	ProcessedAt     time.Time `gorm:"column:processed_at;type:timestamp;default:current_timestamp;index" json:"processed_at"`

	Account     Account           `gorm:"foreignKey:SMTPConfigID;constraint:OnDelete:RESTRICT" json:"-"`
	Attachments []EmailAttachment `gorm:"foreignKey:EmailLogID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

func (Email) TableName() string {
	return "email_logs"
}

package models

import (
	"time"
)

// Account is one monitored mailbox: the IMAP/SMTP transport settings plus
// per-account storage policy overrides. Override pointers are tri-valued:
// nil means "inherit the global setting".
type Account struct {
	ID   uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;type:varchar(255);uniqueIndex;not null" json:"name"`
	// Optional human-facing address, used as From when it looks like an address
	AccountName string `gorm:"column:account_name;type:varchar(255)" json:"account_name"`

	// IMAP configuration
	IMAPHost   string `gorm:"column:imap_host;type:varchar(255);not null" json:"imap_host"`
	IMAPPort   int    `gorm:"column:imap_port;not null;default:993" json:"imap_port"`
	IMAPUseSSL bool   `gorm:"column:imap_use_ssl;not null;default:true" json:"imap_use_ssl"`
	IMAPUseTLS bool   `gorm:"column:imap_use_tls;not null;default:false" json:"imap_use_tls"`

	// SMTP configuration (optional; IMAP host on port 587 is the fallback)
	SMTPHost   string `gorm:"column:smtp_host;type:varchar(255)" json:"smtp_host"`
	SMTPPort   int    `gorm:"column:smtp_port;default:587" json:"smtp_port"`
	SMTPUseSSL bool   `gorm:"column:smtp_use_ssl;not null;default:false" json:"smtp_use_ssl"`
	SMTPUseTLS bool   `gorm:"column:smtp_use_tls;not null;default:true" json:"smtp_use_tls"`

	// Credentials, shared by both transports
	Username string `gorm:"column:username;type:varchar(255);not null" json:"username"`
	Password string `gorm:"column:password;type:varchar(500);not null" json:"-"`

	// Lifecycle
	Enabled              bool       `gorm:"column:enabled;not null;default:true;index" json:"enabled"`
	LastCheck            *time.Time `gorm:"column:last_check;type:timestamp" json:"last_check"`
	TotalEmailsProcessed int64      `gorm:"column:total_emails_processed;not null;default:0" json:"total_emails_processed"`

	// Policy overrides (nil = inherit global)
	StoreTextOnly     *bool  `gorm:"column:store_text_only" json:"store_text_only"`
	MaxAttachmentSize *int64 `gorm:"column:max_attachment_size" json:"max_attachment_size"`
	ExtractPDFText    *bool  `gorm:"column:extract_pdf_text" json:"extract_pdf_text"`
	ExtractDocxText   *bool  `gorm:"column:extract_docx_text" json:"extract_docx_text"`
	ExtractImageText  *bool  `gorm:"column:extract_image_text" json:"extract_image_text"`
	ExtractOtherText  *bool  `gorm:"column:extract_other_text" json:"extract_other_text"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updated_at"`
}

func (Account) TableName() string {
	return "smtp_configs"
}

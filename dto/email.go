package dto

import (
	"time"

	"github.com/mailvault/mailvault/internal/models"
)

type CreateAccountRequest struct {
	Name        string `json:"name" binding:"required"`
	AccountName string `json:"account_name"`
	IMAPHost    string `json:"imap_host" binding:"required"`
	IMAPPort    *int   `json:"imap_port"`
	IMAPUseSSL  *bool  `json:"imap_use_ssl"`
	IMAPUseTLS  *bool  `json:"imap_use_tls"`
	SMTPHost    string `json:"smtp_host"`
	SMTPPort    *int   `json:"smtp_port"`
	SMTPUseSSL  *bool  `json:"smtp_use_ssl"`
	SMTPUseTLS  *bool  `json:"smtp_use_tls"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Enabled     *bool  `json:"enabled"`

	StoreTextOnly     *bool  `json:"store_text_only"`
	MaxAttachmentSize *int64 `json:"max_attachment_size"`
	ExtractPDFText    *bool  `json:"extract_pdf_text"`
	ExtractDocxText   *bool  `json:"extract_docx_text"`
	ExtractImageText  *bool  `json:"extract_image_text"`
	ExtractOtherText  *bool  `json:"extract_other_text"`
}

// UpdateAccountRequest carries only the fields to change; nil means keep
type UpdateAccountRequest struct {
	Name        *string `json:"name"`
	AccountName *string `json:"account_name"`
	IMAPHost    *string `json:"imap_host"`
	IMAPPort    *int    `json:"imap_port"`
	IMAPUseSSL  *bool   `json:"imap_use_ssl"`
	IMAPUseTLS  *bool   `json:"imap_use_tls"`
	SMTPHost    *string `json:"smtp_host"`
	SMTPPort    *int    `json:"smtp_port"`
	SMTPUseSSL  *bool   `json:"smtp_use_ssl"`
	SMTPUseTLS  *bool   `json:"smtp_use_tls"`
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	Enabled     *bool   `json:"enabled"`

	StoreTextOnly     *bool  `json:"store_text_only"`
	MaxAttachmentSize *int64 `json:"max_attachment_size"`
	ExtractPDFText    *bool  `json:"extract_pdf_text"`
	ExtractDocxText   *bool  `json:"extract_docx_text"`
	ExtractImageText  *bool  `json:"extract_image_text"`
	ExtractOtherText  *bool  `json:"extract_other_text"`
}

type AttachmentPayload struct {
	Filename      string `json:"filename" binding:"required"`
	ContentType   string `json:"content_type"`
	ContentBase64 string `json:"content_base64" binding:"required"`
}

type SendEmailRequest struct {
	AccountID   uint                `json:"account_id" binding:"required"`
	To          []string            `json:"to" binding:"required"`
	Cc          []string            `json:"cc"`
	Bcc         []string            `json:"bcc"`
	ReplyTo     string              `json:"reply_to"`
	Subject     string              `json:"subject" binding:"required"`
	BodyText    string              `json:"body_text"`
	BodyHTML    string              `json:"body_html"`
	Attachments []AttachmentPayload `json:"attachments"`
}

type ReplyEmailRequest struct {
	AccountID uint   `json:"account_id" binding:"required"`
	Body      string `json:"body" binding:"required"`
}

type ForwardEmailRequest struct {
	AccountID             uint     `json:"account_id" binding:"required"`
	To                    []string `json:"to" binding:"required"`
	Note                  string   `json:"note"`
	IncludeAttachmentText bool     `json:"include_attachment_text"`
}

type SendEmailResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

type EmailListResponse struct {
	Emails []models.Email `json:"emails"`
	Total  int64          `json:"total"`
	Skip   int            `json:"skip"`
	Limit  int            `json:"limit"`
}

type StatusResponse struct {
	Status          string     `json:"status"`
	Version         string     `json:"version"`
	Accounts        int64      `json:"accounts"`
	EnabledAccounts int64      `json:"enabled_accounts"`
	Emails          int64      `json:"emails"`
	Attachments     int64      `json:"attachments"`
	Processor       Processor  `json:"processor"`
	Time            time.Time  `json:"time"`
	LastCycleAt     *time.Time `json:"last_cycle_at,omitempty"`
}

type Processor struct {
	Running         bool   `json:"running"`
	ActivePollers   int    `json:"active_pollers"`
	CyclesCompleted int64  `json:"cycles_completed"`
	LastCycleError  string `json:"last_cycle_error,omitempty"`
}

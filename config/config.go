package config

import (
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/tracing"
)

type AppConfig struct {
	APIHost     string `env:"EMAILSERVER_API_HOST" envDefault:"0.0.0.0"`
	APIPort     string `env:"EMAILSERVER_API_PORT" envDefault:"8000"`
	RabbitMQURL string `env:"EMAILSERVER_RABBITMQ_URL"`
}

type DatabaseConfig struct {
	URL             string `env:"EMAILSERVER_DATABASE_URL,required"`
	MaxConn         int    `env:"EMAILSERVER_DB_MAX_CONN" envDefault:"15"`
	MaxIdleConn     int    `env:"EMAILSERVER_DB_MAX_IDLE_CONN" envDefault:"5"`
	ConnMaxLifetime int    `env:"EMAILSERVER_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"EMAILSERVER_DB_LOG_LEVEL" envDefault:"WARN"`
}

// ProcessorConfig drives the polling scheduler. Intervals are in seconds.
type ProcessorConfig struct {
	CheckInterval      int `env:"EMAILSERVER_EMAIL_CHECK_INTERVAL" envDefault:"30"`
	ErrorRetryInterval int `env:"EMAILSERVER_ERROR_RETRY_INTERVAL" envDefault:"60"`
	MaxEmailsPerBatch  int `env:"EMAILSERVER_MAX_EMAILS_PER_BATCH" envDefault:"50"`
}

// ExtractionConfig holds the global attachment storage and text extraction
// policy. Per-account overrides can only narrow these settings, never widen
// them.
type ExtractionConfig struct {
	StoreTextOnly         bool  `env:"EMAILSERVER_STORE_TEXT_ONLY" envDefault:"true"`
	MaxAttachmentSize     int64 `env:"EMAILSERVER_MAX_ATTACHMENT_SIZE" envDefault:"10485760"`
	MaxAttachmentSizeText int64 `env:"EMAILSERVER_MAX_ATTACHMENT_SIZE_TEXT" envDefault:"10485760"`
	ExtractPDFText        bool  `env:"EMAILSERVER_EXTRACT_PDF_TEXT" envDefault:"true"`
	ExtractDocxText       bool  `env:"EMAILSERVER_EXTRACT_DOCX_TEXT" envDefault:"true"`
	ExtractImageText      bool  `env:"EMAILSERVER_EXTRACT_IMAGE_TEXT" envDefault:"true"`
	ExtractOtherText      bool  `env:"EMAILSERVER_EXTRACT_OTHER_TEXT" envDefault:"true"`
}

// RetentionConfig enables the purge cron when both values are set.
type RetentionConfig struct {
	Schedule string `env:"EMAILSERVER_RETENTION_SCHEDULE"`
	Days     int    `env:"EMAILSERVER_RETENTION_DAYS" envDefault:"0"`
}

type SMTPConfig struct {
	DefaultHost string `env:"EMAILSERVER_SMTP_HOST"`
	DefaultPort int    `env:"EMAILSERVER_SMTP_PORT" envDefault:"587"`
}

type Config struct {
	AppConfig        *AppConfig
	DatabaseConfig   *DatabaseConfig
	ProcessorConfig  *ProcessorConfig
	ExtractionConfig *ExtractionConfig
	RetentionConfig  *RetentionConfig
	SMTPConfig       *SMTPConfig
	Logger           *logger.Config
	Tracing          *tracing.JaegerConfig
}

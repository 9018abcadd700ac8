package interfaces

import (
	"context"
	"time"

	"github.com/mailvault/mailvault/internal/models"
)

// EventPublisher emits ingest events to the message broker. Wired only
// when a broker URL is configured; publish failures never block ingestion.
type EventPublisher interface {
	PublishEmailIngested(ctx context.Context, email *models.Email) error
	Close() error
}

type ProcessorStatus struct {
	Running         bool       `json:"running"`
	ActivePollers   int        `json:"active_pollers"`
	LastCycleAt     *time.Time `json:"last_cycle_at"`
	LastCycleError  string     `json:"last_cycle_error,omitempty"`
	CyclesCompleted int64      `json:"cycles_completed"`
}

// ProcessorService drives per-account polling
type ProcessorService interface {
	Start(ctx context.Context) error
	Stop() error
	PollAccount(ctx context.Context, accountID uint) error
	Status() ProcessorStatus
}

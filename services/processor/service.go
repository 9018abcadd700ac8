package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/policy"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/services/extractor"
	"github.com/mailvault/mailvault/services/imap"
)

// ErrPollInProgress reports that an account's poller is already running;
// a second poll for the same account is rejected rather than queued.
var ErrPollInProgress = errors.New("poll already in progress for this account")

// Scheduler owns the poll loop: every check interval it snapshots the
// enabled accounts, fans one poller out per account, waits for all of them
// and sleeps. A failed cycle sleeps the longer error-retry interval instead.
// Account faults are contained; the scheduler never dies from one.
type Scheduler struct {
	cfg       *config.Config
	log       logger.Logger
	repos     *repository.Repositories
	extractor *extractor.Service
	publisher interfaces.EventPublisher

	// one long-lived IMAP client per (account id, host); each entry is
	// owned by its account's poller and never shared
	clients      map[string]*imap.Client
	clientsMutex sync.Mutex

	// at most one poller per account at a time, whether scheduled or
	// triggered manually; a client never sees interleaved commands
	inFlight      map[uint]bool
	inFlightMutex sync.Mutex

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	statusMutex sync.RWMutex
	status      interfaces.ProcessorStatus
}

func NewScheduler(
	cfg *config.Config,
	log logger.Logger,
	repos *repository.Repositories,
	extractorService *extractor.Service,
	publisher interfaces.EventPublisher,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		log:       log,
		repos:     repos,
		extractor: extractorService,
		publisher: publisher,
		clients:   make(map[string]*imap.Client),
		inFlight:  make(map[uint]bool),
	}
}

// Start blocks until the context is cancelled or Stop is called
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.statusMutex.Lock()
	s.status.Running = true
	s.statusMutex.Unlock()

	checkInterval := time.Duration(s.cfg.ProcessorConfig.CheckInterval) * time.Second
	errorInterval := time.Duration(s.cfg.ProcessorConfig.ErrorRetryInterval) * time.Second

	s.log.Infof("email processor started, checking every %s", checkInterval)

	for {
		cycleErr := s.runCycle(s.ctx)

		sleep := checkInterval
		if cycleErr != nil {
			if errors.Is(cycleErr, context.Canceled) {
				break
			}
			s.log.Errorf("poll cycle failed: %v", cycleErr)
			sleep = errorInterval
		}

		select {
		case <-time.After(sleep):
		case <-s.ctx.Done():
		}

		if s.ctx.Err() != nil {
			break
		}
	}

	s.statusMutex.Lock()
	s.status.Running = false
	s.statusMutex.Unlock()

	s.log.Info("email processor stopped")
	return nil
}

// Stop cancels all pollers, waits for them to finish their current batch
// and drops every live IMAP connection
func (s *Scheduler) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("all pollers completed gracefully")
	case <-time.After(15 * time.Second):
		s.log.Warn("timeout waiting for pollers to complete")
	}

	s.clientsMutex.Lock()
	for key, c := range s.clients {
		c.Logout()
		delete(s.clients, key)
	}
	s.clientsMutex.Unlock()

	return nil
}

func (s *Scheduler) Status() interfaces.ProcessorStatus {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.status
}

// runCycle snapshots the enabled accounts and polls each concurrently.
// The snapshots are plain values detached from the storage session, so a
// poller never re-reads a stale row mid-cycle.
func (s *Scheduler) runCycle(ctx context.Context) error {
	span, ctx := tracing.StartTracerSpan(ctx, "Scheduler.runCycle")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	accounts, err := s.repos.AccountRepository.ListEnabled(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		s.recordCycle(err)
		return errors.Wrap(err, "listing enabled accounts")
	}

	span.LogFields(tracingLog.Int("accounts", len(accounts)))

	s.statusMutex.Lock()
	s.status.ActivePollers = len(accounts)
	s.statusMutex.Unlock()

	var cycleWg sync.WaitGroup
	for _, account := range accounts {
		account := account
		cycleWg.Add(1)
		s.wg.Add(1)
		go func() {
			defer cycleWg.Done()
			defer s.wg.Done()
			defer tracing.RecoverAndLogToJaeger(s.log)

			err := s.pollAccount(ctx, account)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
			case errors.Is(err, ErrPollInProgress):
				s.log.Infof("[account %d] poll skipped, previous poll still running", account.ID)
			default:
				s.log.Warnf("[account %d] poll failed: %v", account.ID, err)
			}
		}()
	}
	cycleWg.Wait()

	s.statusMutex.Lock()
	s.status.ActivePollers = 0
	s.statusMutex.Unlock()

	s.recordCycle(nil)
	return ctx.Err()
}

func (s *Scheduler) recordCycle(err error) {
	now := time.Now().UTC()

	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	s.status.LastCycleAt = &now
	s.status.CyclesCompleted++
	if err != nil {
		s.status.LastCycleError = err.Error()
	} else {
		s.status.LastCycleError = ""
	}
}

// PollAccount runs one immediate poll for a single account, outside the
// scheduler's cycle. Used by the manual trigger endpoint.
func (s *Scheduler) PollAccount(ctx context.Context, accountID uint) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Scheduler.PollAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, fmt.Sprintf("%d", accountID))

	account, err := s.repos.AccountRepository.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	return s.pollAccount(ctx, *account)
}

// pollAccount drives one account through one poll: connect (or reuse the
// live client), enumerate folders, stream batches, ingest. last_check is
// updated unconditionally on exit; progress committed by earlier batches
// survives later failures.
func (s *Scheduler) pollAccount(ctx context.Context, account models.Account) error {
	span, ctx := tracing.StartTracerSpan(ctx, "Scheduler.pollAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, fmt.Sprintf("%d", account.ID))

	if !s.tryAcquire(account.ID) {
		return ErrPollInProgress
	}
	defer s.release(account.ID)

	defer func() {
		// detached context: last_check must land even when ctx is cancelled
		checkCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.repos.AccountRepository.UpdateLastCheck(checkCtx, account.ID, time.Now().UTC()); err != nil {
			s.log.Warnf("[account %d] failed to update last_check: %v", account.ID, err)
		}
	}()

	client, err := s.clientFor(account)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if !client.Connected() {
		if err := client.Connect(ctx); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	folders, err := client.Folders(ctx)
	if err != nil {
		// a dead connection is dropped so the next cycle reconnects
		s.dropClient(account)
		tracing.TraceErr(span, err)
		return err
	}

	view := policy.Resolve(s.cfg.ExtractionConfig, &account)
	limit := s.cfg.ProcessorConfig.MaxEmailsPerBatch

	onBatch := func(batchCtx context.Context, batch []imap.RawMessage) error {
		return s.ingestBatch(batchCtx, account, view, batch)
	}

	for _, folder := range folders {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := client.FetchFolder(ctx, folder, limit, onBatch); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			// per-folder errors skip the folder; the cycle carries on
			s.log.Warnf("[account %d][%s] folder fetch failed: %v", account.ID, folder, err)
			continue
		}
	}

	return nil
}

func (s *Scheduler) tryAcquire(accountID uint) bool {
	s.inFlightMutex.Lock()
	defer s.inFlightMutex.Unlock()

	if s.inFlight[accountID] {
		return false
	}
	s.inFlight[accountID] = true
	return true
}

func (s *Scheduler) release(accountID uint) {
	s.inFlightMutex.Lock()
	defer s.inFlightMutex.Unlock()
	delete(s.inFlight, accountID)
}

func (s *Scheduler) clientFor(account models.Account) (*imap.Client, error) {
	key := fmt.Sprintf("%d:%s", account.ID, account.IMAPHost)

	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	if existing, ok := s.clients[key]; ok {
		return existing, nil
	}

	client := imap.NewClient(account, s.log)
	s.clients[key] = client
	return client, nil
}

func (s *Scheduler) dropClient(account models.Account) {
	key := fmt.Sprintf("%d:%s", account.ID, account.IMAPHost)

	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	if existing, ok := s.clients[key]; ok {
		existing.Logout()
		delete(s.clients, key)
	}
}

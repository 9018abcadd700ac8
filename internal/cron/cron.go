package cron

import (
	"context"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/internal/tracing"
)

const (
	// GroupMaintenance serializes jobs that mutate stored mail
	GroupMaintenance = "maintenance"
)

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupMaintenance: new(sync.Mutex),
	},
}

// CronManager schedules background maintenance. The only job today is the
// retention purge; it runs only when a schedule and a positive retention
// window are both configured.
type CronManager struct {
	cfg    *config.Config
	log    logger.Logger
	cron   *cronv3.Cron
	repos  *repository.Repositories
	stopCh chan struct{}
	jobIDs map[string]cronv3.EntryID
}

func NewCronManager(cfg *config.Config, log logger.Logger, repos *repository.Repositories) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		repos:  repos,
		stopCh: make(chan struct{}),
		jobIDs: make(map[string]cronv3.EntryID),
	}
}

// Start initializes and starts the cron scheduler
func (cm *CronManager) Start() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// Stop gracefully stops the cron manager, waiting for running jobs
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		<-ctx.Done()
	}
	close(cm.stopCh)
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	retention := cm.cfg.RetentionConfig

	if retention.Schedule != "" && retention.Days > 0 {
		id, err := c.AddFunc(retention.Schedule, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMaintenance].Lock()
			defer jobLocks.locks[GroupMaintenance].Unlock()
			cm.purgeExpiredEmails()
		})
		if err != nil {
			cm.log.Fatalf("Could not add retention cron job: %v", err)
		}
		cm.jobIDs["retention"] = id
		cm.log.Infof("Registered retention job with schedule %s, keeping %d days", retention.Schedule, retention.Days)
	} else {
		cm.log.Info("Retention job disabled")
	}
}

func (cm *CronManager) purgeExpiredEmails() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.purgeExpiredEmails")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	cutoff := time.Now().UTC().AddDate(0, 0, -cm.cfg.RetentionConfig.Days)

	deleted, err := cm.repos.EmailRepository.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to purge expired emails: %v", err)
		return
	}

	if deleted > 0 {
		cm.log.Infof("Retention purge removed %d emails older than %s", deleted, cutoff.Format(time.RFC3339))
	}
}

package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"returns-backend/internal/config"
	"returns-backend/internal/shared"
	"returns-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redisAddress string, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

func (s *Scheduler) RegisterMaintenanceJobs() error {
	return s.registerStalePendingSweepJob()
}

// ================================================
// JOB: Stale Pending Sweep
// ================================================
// Mails the operations inbox a digest of pending returns nobody reviewed.
// Read-only on purpose: pending requests are never auto-transitioned.
func (s *Scheduler) registerStalePendingSweepJob() error {
	payload, err := json.Marshal(shared.StalePendingSweepPayload{
		OlderThanDays: s.jobConfig.StalePendingDays,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeStalePendingSweep, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.StalePendingCron, // default: daily at 8 AM
		task,
		asynq.Queue(shared.QueueMaintenance),
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
	)

	if err != nil {
		logger.Error("Failed to register StalePendingSweep job", err)
		return err
	}

	logger.Info("✓ Registered StalePendingSweep", map[string]interface{}{
		"cron": s.jobConfig.StalePendingCron,
		"days": s.jobConfig.StalePendingDays,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}

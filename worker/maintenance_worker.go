package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreach/models"
	"outreach/utils"
)

const credentialCleanupJob = "credential_cleanup"

// MaintenanceWorker runs periodic housekeeping jobs and records every run
// in automation_logs
type MaintenanceWorker struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Now    func() time.Time

	cron *cron.Cron
}

func NewMaintenanceWorker(db *gorm.DB) *MaintenanceWorker {
	return &MaintenanceWorker{
		DB:     db,
		Logger: utils.NewLogger("maintenance_worker"),
		Now:    time.Now,
		cron:   cron.New(),
	}
}

// Start schedules the jobs and blocks until ctx is cancelled
func (w *MaintenanceWorker) Start(ctx context.Context, schedule string) error {
	_, err := w.cron.AddFunc(schedule, func() {
		if _, err := w.RunCredentialCleanup(ctx); err != nil {
			w.Logger.WithError(err).Error("Credential cleanup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", credentialCleanupJob, err)
	}

	w.cron.Start()
	w.Logger.WithField("schedule", schedule).Info("Maintenance worker started")

	<-ctx.Done()
	stopped := w.cron.Stop()
	<-stopped.Done()
	w.Logger.Info("Maintenance worker shutting down...")
	return nil
}

// RunCredentialCleanup deletes credentials past their expiry and returns
// how many rows went away
func (w *MaintenanceWorker) RunCredentialCleanup(ctx context.Context) (int64, error) {
	run := models.AutomationLog{
		JobName:   credentialCleanupJob,
		JobType:   models.JobCleanup,
		Status:    models.JobStarted,
		StartedAt: w.Now(),
	}
	if err := w.DB.WithContext(ctx).Create(&run).Error; err != nil {
		return 0, fmt.Errorf("record job start: %w", err)
	}

	res := w.DB.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", w.Now()).
		Delete(&models.Credential{})

	finished := w.Now()
	if res.Error != nil {
		w.finish(ctx, run.ID, models.AutomationLog{
			Status:       models.JobFailed,
			ErrorMessage: res.Error.Error(),
			CompletedAt:  &finished,
		})
		utils.LogError("credential_cleanup", res.Error, map[string]interface{}{"job_id": run.ID})
		return 0, fmt.Errorf("delete expired credentials: %w", res.Error)
	}

	w.finish(ctx, run.ID, models.AutomationLog{
		Status:      models.JobCompleted,
		Details:     models.JSONMap{"deleted": res.RowsAffected},
		CompletedAt: &finished,
	})
	w.Logger.WithField("deleted", res.RowsAffected).Info("Expired credentials removed")
	return res.RowsAffected, nil
}

func (w *MaintenanceWorker) finish(ctx context.Context, id uint, outcome models.AutomationLog) {
	err := w.DB.WithContext(ctx).Model(&models.AutomationLog{ID: id}).
		Select("status", "details", "error_message", "completed_at").
		Updates(&outcome).Error
	if err != nil {
		w.Logger.WithError(err).WithField("job_id", id).Warn("Could not record job outcome")
	}
}

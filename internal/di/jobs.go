// Package di provides dependency injection for background jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/config"
	"github.com/aristath/riskgovernor/internal/reliability"
	"github.com/aristath/riskgovernor/internal/scheduler"
)

const (
	walCheckSchedule       = "0 */5 * * * *"
	integrityCheckSchedule = "0 15 * * * *"
)

// RegisterJobs creates the scheduler and registers every background job.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.DB == nil {
		return fmt.Errorf("container cannot be nil")
	}

	s := scheduler.New(log)

	if err := s.AddJob(cfg.MaintenanceSchedule, reliability.NewMaintenanceJob(container.DB, log)); err != nil {
		return fmt.Errorf("failed to register maintenance job: %w", err)
	}

	walCheck := scheduler.NewCheckWALCheckpointsJob(container.DB)
	walCheck.SetLogger(log)
	if err := s.AddJob(walCheckSchedule, walCheck); err != nil {
		return fmt.Errorf("failed to register WAL check job: %w", err)
	}

	integrity := scheduler.NewCheckCoreDatabasesJob(container.DB)
	integrity.SetLogger(log)
	if err := s.AddJob(integrityCheckSchedule, integrity); err != nil {
		return fmt.Errorf("failed to register integrity check job: %w", err)
	}

	if container.BackupService != nil {
		if err := s.AddJob(cfg.Backup.Schedule, reliability.NewBackupJob(container.BackupService, log)); err != nil {
			return fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	container.Scheduler = s
	return nil
}

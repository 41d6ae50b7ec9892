package jobs

import (
	"context"

	"accountwatch/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

type FileCleanupJob struct {
	fileCleanup *services.FileCleanupService
	log         logger.Logger
	schedule    services.Schedule
}

func NewFileCleanupJob(
	fileCleanup *services.FileCleanupService,
	schedule services.Schedule,
) *FileCleanupJob {
	log := logger.New("fileCleanupJob")
	log.Info("Creating new file cleanup job", "schedule", schedule)

	return &FileCleanupJob{
		fileCleanup: fileCleanup,
		log:         log,
		schedule:    schedule,
	}
}

func (j *FileCleanupJob) Name() string {
	return "ResultFileCleanup"
}

func (j *FileCleanupJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	log.Info("Starting scheduled file cleanup")

	if err := j.fileCleanup.CleanupExpiredFiles(ctx); err != nil {
		return log.Err("scheduled cleanup failed", err)
	}

	return nil
}

func (j *FileCleanupJob) Schedule() services.Schedule {
	return j.schedule
}

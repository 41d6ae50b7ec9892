package services

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"accountwatch/config"
	"accountwatch/internal/logger"
)

// FileCleanupService removes result and upload files once they pass the
// configured retention window.
type FileCleanupService struct {
	config config.Config
	log    logger.Logger
}

func NewFileCleanupService(config config.Config) *FileCleanupService {
	return &FileCleanupService{
		config: config,
		log:    logger.New("fileCleanupService"),
	}
}

func (fcs *FileCleanupService) CleanupExpiredFiles(ctx context.Context) error {
	log := fcs.log.Function("CleanupExpiredFiles")

	cutoff := time.Now().Add(-time.Duration(fcs.config.RetentionHours) * time.Hour)

	removed := 0
	for _, dir := range []string{fcs.config.ResultsDir, fcs.config.UploadDir} {
		n, err := fcs.cleanupDir(dir, cutoff)
		if err != nil {
			return log.Err("failed to clean directory", err, "directory", dir)
		}
		removed += n
	}

	log.Info("Cleanup completed", "removed", removed, "retentionHours", fcs.config.RetentionHours)
	return nil
}

func (fcs *FileCleanupService) cleanupDir(dir string, cutoff time.Time) (int, error) {
	log := fcs.log.Function("cleanupDir")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Er("failed to stat entry", err, "name", entry.Name())
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Er("failed to remove expired file", err, "path", path)
			continue
		}
		removed++
	}

	return removed, nil
}

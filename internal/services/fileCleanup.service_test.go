package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"accountwatch/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupExpiredFiles(t *testing.T) {
	resultsDir := t.TempDir()
	uploadDir := t.TempDir()

	old := filepath.Join(resultsDir, "success_20240101_120000.xlsx")
	fresh := filepath.Join(resultsDir, "success_recent.xlsx")
	oldUpload := filepath.Join(uploadDir, "batch.xlsx")

	for _, path := range []string{old, fresh, oldUpload} {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))
	require.NoError(t, os.Chtimes(oldUpload, stale, stale))

	svc := NewFileCleanupService(config.Config{
		ResultsDir:     resultsDir,
		UploadDir:      uploadDir,
		RetentionHours: 24,
	})
	require.NoError(t, svc.CleanupExpiredFiles(context.Background()))

	assert.NoFileExists(t, old)
	assert.NoFileExists(t, oldUpload)
	assert.FileExists(t, fresh)
}

func TestCleanupMissingDirectoriesIsNoop(t *testing.T) {
	svc := NewFileCleanupService(config.Config{
		ResultsDir:     filepath.Join(t.TempDir(), "missing-results"),
		UploadDir:      filepath.Join(t.TempDir(), "missing-uploads"),
		RetentionHours: 24,
	})

	assert.NoError(t, svc.CleanupExpiredFiles(context.Background()))
}

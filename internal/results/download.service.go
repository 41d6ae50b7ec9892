package results

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"accountwatch/config"

	logger "github.com/Bparsons0904/goLogger"
)

const (
	downloadTimeoutSec = 300
	downloadRoute      = "/download"
)

// Service retrieves result artifacts by the opaque identifier the backend
// announced in a result_files event.
type Service struct {
	config     config.Config
	httpClient *http.Client
	log        logger.Logger
}

func New(cfg config.Config) *Service {
	return &Service{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(downloadTimeoutSec) * time.Second,
		},
		log: logger.New("results"),
	}
}

// Fetch downloads the named result file into the configured results
// directory and returns the local path.
func (s *Service) Fetch(ctx context.Context, fileName string) (string, error) {
	log := s.log.Function("Fetch")

	if fileName == "" || strings.ContainsAny(fileName, "/\\") {
		return "", log.Err("invalid result file name", fmt.Errorf("unsafe name: %q", fileName))
	}

	url := fmt.Sprintf("%s%s/%s", s.config.ServerURL, downloadRoute, fileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", log.Err("failed to build download request", err, "url", url)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", log.Err("download request failed", err, "url", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", log.Err(
			"download rejected",
			fmt.Errorf("unexpected status: %s", resp.Status),
			"url", url,
		)
	}

	if err := os.MkdirAll(s.config.ResultsDir, 0o755); err != nil {
		return "", log.Err("failed to create results directory", err, "dir", s.config.ResultsDir)
	}

	localPath := filepath.Join(s.config.ResultsDir, fileName)
	out, err := os.Create(localPath)
	if err != nil {
		return "", log.Err("failed to create local file", err, "path", localPath)
	}
	defer func() {
		_ = out.Close()
	}()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return "", log.Err("failed to write local file", err, "path", localPath)
	}

	log.Info("Result file fetched", "file", fileName, "bytes", written)
	return localPath, nil
}

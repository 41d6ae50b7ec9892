package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"accountwatch/config"

	logger "github.com/Bparsons0904/goLogger"
)

const (
	uploadTimeoutSec = 120
	uploadRoute      = "/upload"
)

// Ack is the backend's acknowledgment of an accepted batch. Anything
// beyond these fields is ignored.
type Ack struct {
	Message       string `json:"message"`
	TotalAccounts int    `json:"total_accounts"`
}

// Service submits a work batch (an Excel spreadsheet) to the processing
// backend. It is a pure collaborator: it does not touch engine state, the
// caller decides what a success or failure means for the run.
type Service struct {
	config     config.Config
	httpClient *http.Client
	log        logger.Logger
}

func New(cfg config.Config) *Service {
	log := logger.New("uploader")

	httpClient := &http.Client{
		Timeout: time.Duration(uploadTimeoutSec) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:    10,
			IdleConnTimeout: 90 * time.Second,
		},
	}

	return &Service{
		config:     cfg,
		httpClient: httpClient,
		log:        log,
	}
}

// Upload submits the file at path. Any non-2xx response or transport
// error is returned as an error; the caller surfaces it and clears the
// run flag so a retry is possible.
func (s *Service) Upload(ctx context.Context, path string) (Ack, error) {
	log := s.log.Function("Upload")

	if !IsSpreadsheet(path) {
		return Ack{}, log.Err("not an Excel file", fmt.Errorf("unsupported extension: %s", filepath.Ext(path)), "path", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return Ack{}, log.Err("failed to open batch file", err, "path", path)
	}
	defer func() {
		_ = file.Close()
	}()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Ack{}, log.Err("failed to build multipart form", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return Ack{}, log.Err("failed to read batch file", err, "path", path)
	}
	if err := writer.Close(); err != nil {
		return Ack{}, log.Err("failed to finalize multipart form", err)
	}

	url := s.config.ServerURL + uploadRoute
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return Ack{}, log.Err("failed to build upload request", err, "url", url)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Info("Uploading batch", "path", path, "url", url)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Ack{}, log.Err("upload request failed", err, "url", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Ack{}, log.Err(
			"upload rejected",
			fmt.Errorf("unexpected status: %s", resp.Status),
			"url", url,
			"status", resp.StatusCode,
		)
	}

	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		// The acknowledgment is opaque; an unreadable body still counts
		// as an accepted upload.
		log.Warn("Could not decode upload acknowledgment", "error", err)
		return Ack{}, nil
	}

	log.Info("Batch accepted", "totalAccounts", ack.TotalAccounts)
	return ack, nil
}

// IsSpreadsheet reports whether path names an Excel file.
func IsSpreadsheet(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".xlsx" || ext == ".xls"
}

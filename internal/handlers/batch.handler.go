package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"accountwatch/internal/app"
	"accountwatch/internal/logger"
	"accountwatch/internal/models"
	"accountwatch/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// BatchHandler accepts account batch uploads and serves the result files
// the processor writes.
type BatchHandler struct {
	config    appConfig
	processor *services.ProcessorService
	log       logger.Logger
	router    fiber.Router
}

type appConfig struct {
	UploadDir  string
	ResultsDir string
}

func NewBatchHandler(app app.App, router fiber.Router) *BatchHandler {
	return &BatchHandler{
		config: appConfig{
			UploadDir:  app.Config.UploadDir,
			ResultsDir: app.Config.ResultsDir,
		},
		processor: app.ProcessorService,
		log:       logger.New("batchHandler"),
		router:    router,
	}
}

func (h *BatchHandler) Register() {
	h.router.Post("/upload", h.upload)
	h.router.Get("/download/:filename", h.download)
}

func (h *BatchHandler) upload(c *fiber.Ctx) error {
	log := h.log.Function("upload")

	if h.processor.IsProcessing() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A batch is already being processed",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing file upload",
		})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Only Excel files are supported",
		})
	}

	if err := os.MkdirAll(h.config.UploadDir, 0o755); err != nil {
		_ = log.Err("failed to create upload directory", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store upload",
		})
	}

	savedPath := filepath.Join(h.config.UploadDir, uuid.New().String()+ext)
	if err := c.SaveFile(fileHeader, savedPath); err != nil {
		_ = log.Err("failed to save uploaded file", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store upload",
		})
	}

	accounts, err := models.LoadAccountsFromExcel(savedPath)
	if err != nil {
		_ = log.Err("failed to parse uploaded batch", err, "file", fileHeader.Filename)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Invalid batch file: %v", err),
		})
	}

	log.Info("Batch accepted", "file", fileHeader.Filename, "accounts", len(accounts))
	go func() {
		if err := h.processor.Process(accounts); err != nil {
			_ = log.Err("batch processing failed", err)
		}
	}()

	return c.JSON(fiber.Map{
		"message":        "Processing started",
		"total_accounts": len(accounts),
	})
}

func (h *BatchHandler) download(c *fiber.Ctx) error {
	log := h.log.Function("download")

	fileName := c.Params("filename")
	if fileName == "" || fileName != filepath.Base(fileName) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid file name",
		})
	}

	path := filepath.Join(h.config.ResultsDir, fileName)
	if _, err := os.Stat(path); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "File not found",
		})
	}

	log.Info("Serving result file", "file", fileName)
	return c.Download(path, fileName)
}

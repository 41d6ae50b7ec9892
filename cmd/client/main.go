package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"accountwatch/config"
	"accountwatch/internal/alerts"
	"accountwatch/internal/clock"
	"accountwatch/internal/engine"
	"accountwatch/internal/format"
	"accountwatch/internal/logger"
	"accountwatch/internal/results"
	"accountwatch/internal/transport"
	"accountwatch/internal/uploader"
)

func main() {
	filePath := flag.String("file", "", "Excel batch to upload before watching the stream")
	flag.Parse()

	log := logger.New("main")

	cfg, err := config.New()
	if err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := alerts.NewLogNotifier()
	eng := engine.New(notifier)

	ticker := clock.New(eng)
	if err := ticker.Start(); err != nil {
		os.Exit(1)
	}
	defer ticker.Stop()

	conn := transport.New(
		websocketURL(cfg.ServerURL),
		time.Duration(cfg.ReconnectSeconds)*time.Second,
		eng,
		notifier,
	)
	go conn.Run(ctx)

	go watchUpdates(ctx, eng, results.New(cfg), log)

	if *filePath != "" {
		uploadBatch(ctx, cfg, eng, notifier, *filePath, log)
	}

	<-ctx.Done()
	log.Info("Shutting down")
}

func uploadBatch(
	ctx context.Context,
	cfg config.Config,
	eng *engine.Engine,
	notifier alerts.Notifier,
	path string,
	log logger.Logger,
) {
	log = log.Function("uploadBatch")

	eng.StartRun()
	ack, err := uploader.New(cfg).Upload(ctx, path)
	if err != nil {
		eng.AbortRun()
		notifier.Notify("Batch upload failed", alerts.SeverityError)
		log.Er("batch upload failed", err, "file", path)
		return
	}

	notifier.Notify("Batch upload accepted", alerts.SeveritySuccess)
	log.Info("Batch accepted", "accounts", ack.TotalAccounts, "message", ack.Message)
}

// watchUpdates consumes state snapshots, logging a compact summary and
// pulling down result files as soon as they are announced.
func watchUpdates(
	ctx context.Context,
	eng *engine.Engine,
	downloads *results.Service,
	log logger.Logger,
) {
	log = log.Function("watchUpdates")
	fetched := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-eng.Updates():
			log.Info("Status",
				"accounts", len(snap.Accounts),
				"processed", snap.Progress.ProcessedAccounts,
				"total", snap.Progress.TotalAccounts,
				"percent", snap.Progress.PercentComplete,
				"elapsed", format.Duration(snap.RunSeconds),
			)

			for _, name := range []string{snap.Progress.SuccessFile, snap.Progress.FailFile} {
				if name == "" || fetched[name] {
					continue
				}
				fetched[name] = true

				go func(fileName string) {
					path, err := downloads.Fetch(ctx, fileName)
					if err != nil {
						log.Er("failed to fetch result file", err, "file", fileName)
						return
					}
					log.Info("Result file saved", "path", path)
				}(name)
			}
		}
	}
}

// websocketURL derives the event stream endpoint from the configured
// server base URL.
func websocketURL(serverURL string) string {
	url := strings.TrimSuffix(serverURL, "/")
	if after, ok := strings.CutPrefix(url, "https://"); ok {
		return "wss://" + after + "/ws"
	}
	if after, ok := strings.CutPrefix(url, "http://"); ok {
		return "ws://" + after + "/ws"
	}
	return url + "/ws"
}

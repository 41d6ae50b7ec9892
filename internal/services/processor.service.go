package services

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"accountwatch/config"
	"accountwatch/internal/events"
	"accountwatch/internal/logger"
	"accountwatch/internal/models"

	"github.com/shopspring/decimal"
)

// Emitter publishes event frames to connected status clients. The
// websocket manager implements it.
type Emitter interface {
	Broadcast(frame events.Frame)
}

// processingStep is one stage of the simulated login flow.
type processingStep struct {
	label  string
	number int
}

var loginSteps = []processingStep{
	{"init_session", 1},
	{"send_credentials", 2},
}

var successSteps = []processingStep{
	{"fetch_account_info", 3},
	{"fetch_transactions", 4},
}

// ProcessorService runs one account batch at a time, emitting the event
// stream clients consume. The account checks themselves are simulated.
type ProcessorService struct {
	config  config.Config
	emitter Emitter
	log     logger.Logger

	mu         sync.Mutex
	processing bool
	total      int
	processed  int
	inProgress int
	success    int
	failed     int

	rng       *rand.Rand
	stepDelay func()
}

func NewProcessorService(cfg config.Config, emitter Emitter) *ProcessorService {
	return &ProcessorService{
		config:  cfg,
		emitter: emitter,
		log:     logger.New("processor"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		stepDelay: func() {
			time.Sleep(time.Duration(500+rand.Intn(800)) * time.Millisecond)
		},
	}
}

func (s *ProcessorService) IsProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Process runs the batch to completion. It blocks until every account is
// done and the result files are written; callers run it on their own
// goroutine. A batch submitted while another is running is rejected.
func (s *ProcessorService) Process(accounts []*models.Account) error {
	log := s.log.Function("Process")

	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return log.Error("batch rejected, already processing")
	}
	s.processing = true
	s.total = len(accounts)
	s.processed = 0
	s.inProgress = 0
	s.success = 0
	s.failed = 0
	s.mu.Unlock()

	log.Info("Starting batch", "accounts", len(accounts))
	s.emitter.Broadcast(events.NewFrame(events.TypeGeneral, events.LevelInfo,
		fmt.Sprintf("Starting to process %d accounts", len(accounts)), nil))
	s.emitProgress()

	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup

	for _, account := range accounts {
		sem <- struct{}{}
		wg.Add(1)

		go func(acc *models.Account) {
			defer func() {
				<-sem
				wg.Done()
			}()

			s.mu.Lock()
			s.inProgress++
			s.mu.Unlock()

			s.processAccount(acc)

			s.mu.Lock()
			s.inProgress--
			s.processed++
			switch acc.Status {
			case models.StatusSuccess:
				s.success++
			case models.StatusFailed:
				s.failed++
			}
			s.mu.Unlock()

			s.emitProgress()
		}(account)
	}

	wg.Wait()

	s.saveResults(accounts)

	s.mu.Lock()
	s.processing = false
	total, success, failed := s.total, s.success, s.failed
	s.mu.Unlock()

	log.Info("Batch complete", "total", total, "success", success, "failed", failed)
	return nil
}

func (s *ProcessorService) processAccount(account *models.Account) {
	username := account.Username
	account.Status = models.StatusProcessing

	s.emitter.Broadcast(events.NewFrame(events.TypeAccountProcess, events.LevelInfo,
		fmt.Sprintf("Processing account %s", username),
		events.AccountProcess{Username: username, Step: "start", StepNumber: 0}))

	for _, step := range loginSteps {
		s.emitStep(username, step)
		s.stepDelay()
	}

	if s.roll(70) {
		s.succeedAccount(account)
	} else {
		s.failAccount(account)
	}
}

func (s *ProcessorService) succeedAccount(account *models.Account) {
	username := account.Username

	for _, step := range successSteps {
		s.emitStep(username, step)
		s.stepDelay()
	}

	s.mu.Lock()
	balance := decimal.New(int64(s.rng.Intn(1000000000)), -2)
	lastDeposit := decimal.New(int64(s.rng.Intn(100000000)), -2)
	depositTime := time.Now().
		Add(-time.Duration(s.rng.Intn(30*24)) * time.Hour).
		Format("2006-01-02 15:04:05")
	depositTxCode := fmt.Sprintf("D%d", s.rng.Int63())
	s.mu.Unlock()

	account.Balance = balance
	account.LastDeposit = lastDeposit
	account.DepositTime = depositTime
	account.DepositTxCode = depositTxCode
	account.Status = models.StatusSuccess

	s.emitter.Broadcast(events.NewFrame(events.TypeTransaction, events.LevelInfo,
		"Latest deposit",
		events.Transaction{
			Username:          username,
			TransactionNumber: depositTxCode,
			TransactionTime:   depositTime,
			TransactionType:   1,
			Amount:            lastDeposit,
			BalanceAfter:      balance,
			IsLatestDeposit:   true,
		}))

	s.emitter.Broadcast(events.NewFrame(events.TypeAccountResult, events.LevelInfo,
		"Account check succeeded",
		events.AccountResult{
			Username:      username,
			Success:       true,
			Balance:       &balance,
			LastDeposit:   &lastDeposit,
			DepositTime:   depositTime,
			DepositTxCode: depositTxCode,
		}))
}

func (s *ProcessorService) failAccount(account *models.Account) {
	errorCode := "AUTH_FAILED"
	details := "Invalid credentials"
	if s.roll(30) {
		errorCode = "CAPTCHA_REQUIRED"
		details = "Captcha verification required"
	}

	account.Status = models.StatusFailed
	account.ErrorCode = errorCode
	account.ErrorDetails = details

	s.emitter.Broadcast(events.NewFrame(events.TypeError, events.LevelError,
		"Account check failed",
		events.ErrorInfo{Username: account.Username, ErrorCode: errorCode, Details: details}))
}

func (s *ProcessorService) emitStep(username string, step processingStep) {
	s.emitter.Broadcast(events.NewFrame(events.TypeAccountStep, events.LevelInfo,
		fmt.Sprintf("Step %d: %s", step.number, step.label),
		events.AccountStep{Username: username, Step: step.label, StepNumber: step.number}))
}

func (s *ProcessorService) emitProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var successRate, percentComplete float64
	if s.processed > 0 {
		successRate = float64(s.success) / float64(s.processed) * 100
	}
	if s.total > 0 {
		percentComplete = float64(s.processed) / float64(s.total) * 100
	}

	s.emitter.Broadcast(events.NewFrame(events.TypeProgress, events.LevelInfo,
		"Processing progress",
		events.Progress{
			Total:           s.total,
			Processed:       s.processed,
			InProgress:      s.inProgress,
			SuccessCount:    s.success,
			FailCount:       s.failed,
			SuccessRate:     successRate,
			PercentComplete: percentComplete,
		}))
}

func (s *ProcessorService) saveResults(accounts []*models.Account) {
	log := s.log.Function("saveResults")

	var successFile, failFile string

	name, err := models.SaveAccountsToExcel(accounts, true, s.config.ResultsDir)
	if err != nil {
		log.Er("failed to save success file", err)
	} else {
		successFile = name
	}

	name, err = models.SaveAccountsToExcel(accounts, false, s.config.ResultsDir)
	if err != nil {
		log.Er("failed to save fail file", err)
	} else {
		failFile = name
	}

	s.emitter.Broadcast(events.NewFrame(events.TypeResultFiles, events.LevelInfo,
		"Result files created",
		events.ResultFiles{SuccessFile: successFile, FailFile: failFile}))
}

// roll returns true with the given percent probability.
func (s *ProcessorService) roll(percent int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(100) < percent
}

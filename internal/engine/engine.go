// Package engine turns the raw event stream into a consistent aggregate
// view: per-account state machines, global progress, and a deterministic
// presentation order, published as read-only snapshots.
package engine

import (
	"encoding/json"
	"sync"
	"time"

	"accountwatch/internal/alerts"
	"accountwatch/internal/events"
	"accountwatch/internal/logger"
	"accountwatch/internal/progress"
	"accountwatch/internal/registry"
)

// Snapshot is the read-only view handed to rendering collaborators.
type Snapshot struct {
	Accounts   []registry.Account
	Progress   progress.Snapshot
	RunActive  bool
	RunSeconds int
}

// Engine owns all mutable client state. Transport, clock, and command
// callers enter from their own goroutines; the mutex serializes them so
// every frame, tick, and reset is one atomic step against the state.
type Engine struct {
	mu         sync.Mutex
	registry   *registry.Registry
	tracker    *progress.Tracker
	notifier   alerts.Notifier
	log        logger.Logger
	runActive  bool
	runStarted time.Time
	runSeconds int
	updates    chan Snapshot

	now func() time.Time
}

func New(notifier alerts.Notifier) *Engine {
	return &Engine{
		registry: registry.New(),
		tracker:  progress.NewTracker(),
		notifier: notifier,
		log:      logger.New("engine"),
		updates:  make(chan Snapshot, 1),
		now:      time.Now,
	}
}

// Updates delivers a snapshot after every state change. The channel holds
// only the latest snapshot; a slow subscriber sees the newest state, not
// a backlog.
func (e *Engine) Updates() <-chan Snapshot {
	return e.updates
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// StartRun resets all state for a fresh processing run. Any record or
// counter from the previous run is discarded.
func (e *Engine) StartRun() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.Reset()
	e.tracker.Reset()
	e.runActive = true
	e.runStarted = e.now()
	e.runSeconds = 0

	e.log.Info("Run started")
	e.publishLocked()
}

// AbortRun clears the run flag, typically after a failed upload, so the
// user can retry.
func (e *Engine) AbortRun() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.runActive = false
	e.publishLocked()
}

// HandleFrame decodes one transport frame and applies it. Malformed frames
// are dropped with a diagnostic; they never disturb the connection or the
// accumulated state.
func (e *Engine) HandleFrame(raw []byte) {
	frame, err := events.DecodeFrame(raw)
	if err != nil {
		e.log.Warn("Dropping malformed frame", "error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch frame.Type {
	case events.TypeAccountProcess:
		e.handleAccountProcess(frame.Data)
	case events.TypeAccountStep:
		e.handleAccountStep(frame.Data)
	case events.TypeAccountResult:
		e.handleAccountResult(frame.Data)
	case events.TypeTransaction:
		e.handleTransaction(frame.Data)
	case events.TypeProgress:
		e.handleProgress(frame.Data)
	case events.TypeError:
		e.handleError(frame.Data)
	case events.TypeResultFiles:
		e.handleResultFiles(frame.Data)
	case events.TypeGeneral:
		e.log.Debug("Backend message", "message", frame.Message, "level", string(frame.Level))
		return
	default:
		e.log.Warn("Dropping frame of unknown type", "type", string(frame.Type))
		return
	}

	e.publishLocked()
}

// Tick recomputes derived durations for every non-terminal record. Ticks
// while no run is active are no-ops.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.runActive {
		return
	}

	e.runSeconds = int(now.Sub(e.runStarted) / time.Second)
	e.registry.Recompute(now)
	e.publishLocked()
}

func (e *Engine) handleAccountProcess(data json.RawMessage) {
	var payload events.AccountProcess
	if !e.decode(data, &payload, events.TypeAccountProcess) {
		return
	}

	// Work arriving while idle means the backend started a run this client
	// did not initiate; track it anyway.
	if !e.runActive {
		e.runActive = true
		e.runStarted = e.now()
		e.runSeconds = 0
	}

	e.registry.UpsertCreate(payload.Username, payload.Step, payload.StepNumber, e.now())
}

func (e *Engine) handleAccountStep(data json.RawMessage) {
	var payload events.AccountStep
	if !e.decode(data, &payload, events.TypeAccountStep) {
		return
	}

	e.registry.UpdateStep(payload.Username, payload.Step, payload.StepNumber)
}

func (e *Engine) handleAccountResult(data json.RawMessage) {
	var payload events.AccountResult
	if !e.decode(data, &payload, events.TypeAccountResult) {
		return
	}

	e.registry.ApplyResult(payload.Username, registry.Result{
		Success:       payload.Success,
		Balance:       payload.Balance,
		LastDeposit:   payload.LastDeposit,
		DepositTime:   payload.DepositTime,
		DepositTxCode: payload.DepositTxCode,
	}, e.now())
}

func (e *Engine) handleTransaction(data json.RawMessage) {
	var payload events.Transaction
	if !e.decode(data, &payload, events.TypeTransaction) {
		return
	}

	if !payload.IsLatestDeposit {
		return
	}

	e.registry.ApplyDeposit(payload.Username, registry.Deposit{
		Amount: payload.Amount,
		Time:   payload.TransactionTime,
		TxCode: payload.TransactionNumber,
	})
}

func (e *Engine) handleProgress(data json.RawMessage) {
	var payload events.Progress
	if !e.decode(data, &payload, events.TypeProgress) {
		return
	}

	completed := e.tracker.Apply(progress.Update{
		Total:           payload.Total,
		Processed:       payload.Processed,
		SuccessCount:    payload.SuccessCount,
		FailCount:       payload.FailCount,
		PercentComplete: payload.PercentComplete,
	})

	if completed && e.runActive {
		e.runActive = false
		e.log.Info("Run complete",
			"total", payload.Total,
			"success", payload.SuccessCount,
			"failed", payload.FailCount,
		)
		e.notifier.Notify("All accounts processed", alerts.SeveritySuccess)
	}
}

func (e *Engine) handleError(data json.RawMessage) {
	var payload events.ErrorInfo
	if !e.decode(data, &payload, events.TypeError) {
		return
	}

	e.registry.ApplyError(payload.Username, payload.ErrorCode, payload.Details, e.now())
}

func (e *Engine) handleResultFiles(data json.RawMessage) {
	var payload events.ResultFiles
	if !e.decode(data, &payload, events.TypeResultFiles) {
		return
	}

	e.tracker.ApplyResultFiles(progress.ResultFiles{
		SuccessFile: payload.SuccessFile,
		FailFile:    payload.FailFile,
	})
}

func (e *Engine) decode(data json.RawMessage, payload any, eventType events.Type) bool {
	if err := json.Unmarshal(data, payload); err != nil {
		e.log.Warn("Dropping frame with malformed data", "type", string(eventType), "error", err)
		return false
	}
	return true
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Accounts:   e.registry.SortedView(),
		Progress:   e.tracker.Snapshot(),
		RunActive:  e.runActive,
		RunSeconds: e.runSeconds,
	}
}

// publishLocked replaces any unconsumed snapshot with the current one.
func (e *Engine) publishLocked() {
	snapshot := e.snapshotLocked()

	for {
		select {
		case e.updates <- snapshot:
			return
		default:
		}

		select {
		case <-e.updates:
		default:
		}
	}
}

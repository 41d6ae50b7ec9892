package engine

import (
	"encoding/json"
	"testing"
	"time"

	"accountwatch/internal/alerts"
	"accountwatch/internal/events"
	"accountwatch/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	messages   []string
	severities []alerts.Severity
}

func (n *recordingNotifier) Notify(message string, severity alerts.Severity) {
	n.messages = append(n.messages, message)
	n.severities = append(n.severities, severity)
}

func newTestEngine() (*Engine, *recordingNotifier) {
	notifier := &recordingNotifier{}
	e := New(notifier)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }
	return e, notifier
}

func frame(t *testing.T, eventType events.Type, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(events.NewFrame(eventType, events.LevelInfo, "test", data))
	require.NoError(t, err)
	return raw
}

func usernames(snapshot Snapshot) []string {
	var names []string
	for _, account := range snapshot.Accounts {
		names = append(names, account.Username)
	}
	return names
}

func TestScenarioPartialRun(t *testing.T) {
	e, _ := newTestEngine()

	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "a"}))
	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "b"}))
	e.HandleFrame(frame(t, events.TypeAccountResult, mustJSON(t, `{"username":"a","success":true,"balance":100}`)))
	e.HandleFrame(frame(t, events.TypeProgress, events.Progress{
		Total: 2, Processed: 1, SuccessCount: 1, FailCount: 0, PercentComplete: 50,
	}))

	snapshot := e.Snapshot()
	assert.Equal(t, []string{"b", "a"}, usernames(snapshot))
	assert.Equal(t, registry.StatusProcessing, snapshot.Accounts[0].Status)
	assert.Equal(t, registry.StatusSuccess, snapshot.Accounts[1].Status)
	assert.Equal(t, 50.0, snapshot.Progress.PercentComplete)
	assert.True(t, snapshot.RunActive, "run is still in progress")
}

func TestScenarioCompletionFiresOnce(t *testing.T) {
	e, notifier := newTestEngine()

	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "a"}))
	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "b"}))
	e.HandleFrame(frame(t, events.TypeAccountResult, mustJSON(t, `{"username":"a","success":true}`)))

	done := events.Progress{Total: 2, Processed: 2, SuccessCount: 1, FailCount: 1, PercentComplete: 100}
	e.HandleFrame(frame(t, events.TypeProgress, done))

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, alerts.SeveritySuccess, notifier.severities[0])
	assert.False(t, e.Snapshot().RunActive)

	// An identical follow-up progress frame must not re-fire completion.
	e.HandleFrame(frame(t, events.TypeProgress, done))
	assert.Len(t, notifier.messages, 1)
}

func TestScenarioMalformedFrameHasNoEffect(t *testing.T) {
	e, _ := newTestEngine()

	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "x"}))
	e.HandleFrame([]byte(`{"type": "account_step", "data": {`))
	e.HandleFrame([]byte(`not json at all`))
	e.HandleFrame(frame(t, events.TypeAccountStep, events.AccountStep{Username: "x", Step: "verifying", StepNumber: 2}))

	snapshot := e.Snapshot()
	require.Len(t, snapshot.Accounts, 1)
	assert.Equal(t, "verifying", snapshot.Accounts[0].Step)
}

func TestUnknownUsernameUpdatesAreNoops(t *testing.T) {
	e, _ := newTestEngine()

	e.HandleFrame(frame(t, events.TypeAccountStep, events.AccountStep{Username: "ghost", Step: "verifying"}))
	e.HandleFrame(frame(t, events.TypeAccountResult, mustJSON(t, `{"username":"ghost","success":true}`)))
	e.HandleFrame(frame(t, events.TypeError, events.ErrorInfo{Username: "ghost", ErrorCode: "X"}))

	assert.Empty(t, e.Snapshot().Accounts)
}

func TestDuplicateProcessEventIsNoop(t *testing.T) {
	e, _ := newTestEngine()

	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "a", Step: "start"}))
	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "a", Step: "other", StepNumber: 9}))

	snapshot := e.Snapshot()
	require.Len(t, snapshot.Accounts, 1)
	assert.Equal(t, "start", snapshot.Accounts[0].Step)
}

func TestTransactionOnlyAppliesLatestDeposit(t *testing.T) {
	e, _ := newTestEngine()

	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "a"}))
	e.HandleFrame(frame(t, events.TypeTransaction, mustJSON(t,
		`{"username":"a","amount":10,"transaction_time":"t1","transaction_number":"D1","is_latest_deposit":false}`)))

	snapshot := e.Snapshot()
	assert.Nil(t, snapshot.Accounts[0].LastDeposit)

	e.HandleFrame(frame(t, events.TypeTransaction, mustJSON(t,
		`{"username":"a","amount":25.5,"transaction_time":"t2","transaction_number":"D2","is_latest_deposit":true}`)))

	snapshot = e.Snapshot()
	require.NotNil(t, snapshot.Accounts[0].LastDeposit)
	assert.Equal(t, "25.5", snapshot.Accounts[0].LastDeposit.String())
	assert.Equal(t, "D2", snapshot.Accounts[0].DepositTxCode)
	assert.Equal(t, registry.StatusProcessing, snapshot.Accounts[0].Status)
}

func TestLateTransactionDoesNotResurrectTerminalAccount(t *testing.T) {
	e, _ := newTestEngine()

	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "a"}))
	e.HandleFrame(frame(t, events.TypeError, events.ErrorInfo{Username: "a", ErrorCode: "AUTH_FAILED", Details: "bad credentials"}))
	e.HandleFrame(frame(t, events.TypeTransaction, mustJSON(t,
		`{"username":"a","amount":5,"transaction_time":"t","transaction_number":"D9","is_latest_deposit":true}`)))

	snapshot := e.Snapshot()
	assert.Equal(t, registry.StatusFailed, snapshot.Accounts[0].Status)
	assert.Equal(t, "AUTH_FAILED", snapshot.Accounts[0].ErrorCode)
	assert.Equal(t, "D9", snapshot.Accounts[0].DepositTxCode)
}

func TestTickRecomputesOnlyWhileRunActive(t *testing.T) {
	e, _ := newTestEngine()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e.Tick(base.Add(time.Minute)) // idle tick is a no-op
	assert.Equal(t, 0, e.Snapshot().RunSeconds)

	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "a"}))
	e.Tick(base.Add(65 * time.Second))

	snapshot := e.Snapshot()
	assert.Equal(t, 65, snapshot.RunSeconds)
	assert.Equal(t, "1m 5s", snapshot.Accounts[0].ProcessingTime)
}

func TestResultFilesMergeIntoProgress(t *testing.T) {
	e, _ := newTestEngine()

	e.HandleFrame(frame(t, events.TypeResultFiles, events.ResultFiles{SuccessFile: "success_1.xlsx"}))
	e.HandleFrame(frame(t, events.TypeResultFiles, events.ResultFiles{FailFile: "fail_1.xlsx"}))

	snapshot := e.Snapshot()
	assert.Equal(t, "success_1.xlsx", snapshot.Progress.SuccessFile)
	assert.Equal(t, "fail_1.xlsx", snapshot.Progress.FailFile)
}

func TestStartRunResetsPreviousState(t *testing.T) {
	e, _ := newTestEngine()

	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "old"}))
	e.HandleFrame(frame(t, events.TypeProgress, events.Progress{Total: 1, Processed: 1, PercentComplete: 100}))

	e.StartRun()

	snapshot := e.Snapshot()
	assert.Empty(t, snapshot.Accounts)
	assert.Equal(t, 0, snapshot.Progress.TotalAccounts)
	assert.True(t, snapshot.RunActive)
}

func TestUpdatesChannelKeepsLatestSnapshot(t *testing.T) {
	e, _ := newTestEngine()

	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "a"}))
	e.HandleFrame(frame(t, events.TypeAccountProcess, events.AccountProcess{Username: "b"}))

	select {
	case snapshot := <-e.Updates():
		assert.Len(t, snapshot.Accounts, 2, "subscriber sees the newest state")
	default:
		t.Fatal("expected a pending snapshot")
	}
}

func mustJSON(t *testing.T, raw string) json.RawMessage {
	t.Helper()
	var check any
	require.NoError(t, json.Unmarshal([]byte(raw), &check))
	return json.RawMessage(raw)
}

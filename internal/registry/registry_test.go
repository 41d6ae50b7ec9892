package registry

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestUpsertCreateIsUniquePerUsername(t *testing.T) {
	r := New()

	assert.True(t, r.UpsertCreate("alice", "start", 0, base))
	assert.False(t, r.UpsertCreate("alice", "later", 3, base.Add(time.Minute)))

	require.Equal(t, 1, r.Len())

	account, ok := r.Find("alice")
	require.True(t, ok)
	assert.Equal(t, "start", account.Step)
	assert.Equal(t, 0, account.StepNumber)
	assert.Equal(t, StatusProcessing, account.Status)
	assert.Equal(t, "0s", account.ProcessingTime)
}

func TestUpsertCreateDefaultsStepLabel(t *testing.T) {
	r := New()
	r.UpsertCreate("alice", "", 0, base)

	account, _ := r.Find("alice")
	assert.Equal(t, "start", account.Step)
}

func TestUpdateStepUnknownUsernameIsNoop(t *testing.T) {
	r := New()
	assert.False(t, r.UpdateStep("ghost", "verifying", 2))
	assert.Equal(t, 0, r.Len())
}

func TestTerminalStatusIsMonotonic(t *testing.T) {
	r := New()
	r.UpsertCreate("alice", "start", 0, base)

	assert.True(t, r.ApplyResult("alice", Result{Success: true, Balance: dec("100")}, base.Add(5*time.Second)))

	// Neither a second result nor an error event may change status again.
	assert.False(t, r.ApplyResult("alice", Result{Success: false}, base.Add(10*time.Second)))
	assert.False(t, r.ApplyError("alice", "AUTH_FAILED", "late failure", base.Add(11*time.Second)))

	account, _ := r.Find("alice")
	assert.Equal(t, StatusSuccess, account.Status)
	assert.Equal(t, "AUTH_FAILED", account.ErrorCode, "supplementary fields still recorded")
}

func TestDepositDoesNotChangeStatus(t *testing.T) {
	r := New()
	r.UpsertCreate("alice", "start", 0, base)
	r.ApplyResult("alice", Result{Success: false}, base.Add(2*time.Second))

	assert.True(t, r.ApplyDeposit("alice", Deposit{
		Amount: decimal.RequireFromString("42.50"),
		Time:   "2025-06-01 10:00:00",
		TxCode: "D123",
	}))

	account, _ := r.Find("alice")
	assert.Equal(t, StatusFailed, account.Status)
	assert.Equal(t, "42.5", account.LastDeposit.String())
	assert.Equal(t, "D123", account.DepositTxCode)
}

func TestDurationFreezesOnTermination(t *testing.T) {
	r := New()
	r.UpsertCreate("alice", "start", 0, base)

	r.Recompute(base.Add(65 * time.Second))
	account, _ := r.Find("alice")
	assert.Equal(t, "1m 5s", account.ProcessingTime)

	r.ApplyResult("alice", Result{Success: true}, base.Add(70*time.Second))

	// Further ticks must not move a frozen duration.
	r.Recompute(base.Add(10 * time.Minute))
	account, _ = r.Find("alice")
	assert.Equal(t, "1m 10s", account.ProcessingTime)
}

func TestRecomputeSkipsTerminalRecords(t *testing.T) {
	r := New()
	r.UpsertCreate("alice", "start", 0, base)
	r.UpsertCreate("bob", "start", 0, base)
	r.ApplyError("bob", "CAPTCHA_REQUIRED", "captcha", base.Add(3*time.Second))

	r.Recompute(base.Add(30 * time.Second))

	alice, _ := r.Find("alice")
	bob, _ := r.Find("bob")
	assert.Equal(t, "30s", alice.ProcessingTime)
	assert.Equal(t, "3s", bob.ProcessingTime)
}

func TestSortedViewOrdering(t *testing.T) {
	r := New()
	for _, username := range []string{"delta", "bravo", "echo", "alpha", "charlie"} {
		r.UpsertCreate(username, "start", 0, base)
	}

	r.ApplyResult("delta", Result{Success: true}, base.Add(time.Second))
	r.ApplyResult("alpha", Result{Success: true}, base.Add(time.Second))
	r.ApplyError("echo", "AUTH_FAILED", "", base.Add(time.Second))

	var usernames []string
	for _, account := range r.SortedView() {
		usernames = append(usernames, account.Username)
	}

	// processing first (by name), then success (by name), then failed.
	assert.Equal(t, []string{"bravo", "charlie", "alpha", "delta", "echo"}, usernames)
}

func TestSortIsStableAndStateDerived(t *testing.T) {
	r := New()
	r.UpsertCreate("bravo", "start", 0, base)
	r.UpsertCreate("alpha", "start", 0, base)
	r.ApplyResult("bravo", Result{Success: true}, base.Add(time.Second))

	first := r.SortedView()
	second := r.SortedView()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Username, second[i].Username)
	}

	// An in-place field update must not change relative order.
	r.ApplyDeposit("bravo", Deposit{Amount: decimal.NewFromInt(7)})
	third := r.SortedView()
	for i := range first {
		assert.Equal(t, first[i].Username, third[i].Username)
	}
}

func TestResetDiscardsAllRecords(t *testing.T) {
	r := New()
	r.UpsertCreate("alice", "start", 0, base)
	r.UpsertCreate("bob", "start", 0, base)

	r.Reset()

	assert.Equal(t, 0, r.Len())
	_, ok := r.Find("alice")
	assert.False(t, ok)

	// A fresh run may reuse usernames.
	assert.True(t, r.UpsertCreate("alice", "start", 0, base.Add(time.Hour)))
}

// Package registry holds the per-account processing records for the
// current run and the policy that orders them for presentation.
package registry

import (
	"slices"
	"time"

	"accountwatch/internal/format"
	"accountwatch/internal/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Account is the record for one username. startedAt is tracked only while
// the account is processing; it is cleared at the same step that freezes
// ProcessingTime, so a terminal record can never pick up new tick updates.
type Account struct {
	Username       string
	Status         Status
	Step           string
	StepNumber     int
	Balance        *decimal.Decimal
	LastDeposit    *decimal.Decimal
	DepositTime    string
	DepositTxCode  string
	ErrorCode      string
	ErrorDetails   string
	ProcessingTime string

	startedAt *time.Time
}

// Terminal reports whether the account reached success or failed.
func (a *Account) Terminal() bool {
	return a.Status == StatusSuccess || a.Status == StatusFailed
}

// Result carries the fields of an account_result event.
type Result struct {
	Success       bool
	Balance       *decimal.Decimal
	LastDeposit   *decimal.Decimal
	DepositTime   string
	DepositTxCode string
}

// Deposit carries the fields of a latest-deposit transaction event.
type Deposit struct {
	Amount decimal.Decimal
	Time   string
	TxCode string
}

type Registry struct {
	accounts map[string]*Account
	order    []*Account
	collator *collate.Collator
	log      logger.Logger
}

func New() *Registry {
	return &Registry{
		accounts: make(map[string]*Account),
		order:    make([]*Account, 0),
		collator: collate.New(language.Und),
		log:      logger.New("registry"),
	}
}

// UpsertCreate adds a processing record for username if it is unseen.
// A duplicate create is a no-op; the first occurrence wins. Returns
// whether a record was created.
func (r *Registry) UpsertCreate(username, step string, stepNumber int, now time.Time) bool {
	if _, exists := r.accounts[username]; exists {
		return false
	}

	if step == "" {
		step = "start"
	}

	started := now
	account := &Account{
		Username:       username,
		Status:         StatusProcessing,
		Step:           step,
		StepNumber:     stepNumber,
		ProcessingTime: format.Duration(0),
		startedAt:      &started,
	}

	r.accounts[username] = account
	r.order = append(r.order, account)
	r.sort()

	return true
}

// Find returns a copy of the record for username.
func (r *Registry) Find(username string) (Account, bool) {
	account, ok := r.accounts[username]
	if !ok {
		return Account{}, false
	}
	return *account, true
}

// UpdateStep updates the current stage label of a processing record.
// Unknown usernames and terminal records are no-ops. Step changes do not
// affect ordering, so no re-sort happens here.
func (r *Registry) UpdateStep(username, step string, stepNumber int) bool {
	account, ok := r.accounts[username]
	if !ok || account.Terminal() {
		return false
	}

	if step == "" {
		step = "processing"
	}

	account.Step = step
	account.StepNumber = stepNumber
	return true
}

// ApplyResult applies an account_result event. A processing record
// transitions to its terminal state and has its duration frozen. A record
// that is already terminal keeps its status and duration; only the
// supplementary balance fields are refreshed.
func (r *Registry) ApplyResult(username string, result Result, now time.Time) bool {
	account, ok := r.accounts[username]
	if !ok {
		return false
	}

	if result.Success {
		if result.Balance != nil {
			account.Balance = result.Balance
		}
		if result.LastDeposit != nil {
			account.LastDeposit = result.LastDeposit
		}
		if result.DepositTime != "" {
			account.DepositTime = result.DepositTime
		}
		if result.DepositTxCode != "" {
			account.DepositTxCode = result.DepositTxCode
		}
	}

	if account.Terminal() {
		r.log.Debug("Result for terminal account ignored", "username", username)
		return false
	}

	if result.Success {
		account.Status = StatusSuccess
	} else {
		account.Status = StatusFailed
	}

	r.freeze(account, now)
	r.sort()
	return true
}

// ApplyError applies an error event: terminal failed, duration frozen,
// code and details recorded. Error details are supplementary, so they are
// recorded even when the record is already terminal.
func (r *Registry) ApplyError(username, code, details string, now time.Time) bool {
	account, ok := r.accounts[username]
	if !ok {
		return false
	}

	if code == "" {
		code = "Unknown"
	}
	account.ErrorCode = code
	account.ErrorDetails = details

	if account.Terminal() {
		return false
	}

	account.Status = StatusFailed
	r.freeze(account, now)
	r.sort()
	return true
}

// ApplyDeposit overwrites the deposit fields of an existing record.
// Status and ordering are untouched.
func (r *Registry) ApplyDeposit(username string, deposit Deposit) bool {
	account, ok := r.accounts[username]
	if !ok {
		return false
	}

	amount := deposit.Amount
	account.LastDeposit = &amount
	account.DepositTime = deposit.Time
	account.DepositTxCode = deposit.TxCode
	return true
}

// Recompute refreshes the displayed duration of every record still
// tracking a start time. Terminal records keep their frozen string.
func (r *Registry) Recompute(now time.Time) {
	for _, account := range r.order {
		if account.Status != StatusProcessing || account.startedAt == nil {
			continue
		}
		elapsed := int(now.Sub(*account.startedAt) / time.Second)
		account.ProcessingTime = format.Duration(elapsed)
	}
}

// SortedView returns a copy of the records in presentation order.
func (r *Registry) SortedView() []Account {
	view := make([]Account, len(r.order))
	for i, account := range r.order {
		view[i] = *account
	}
	return view
}

// Reset discards all records; called when a new run begins.
func (r *Registry) Reset() {
	r.accounts = make(map[string]*Account)
	r.order = r.order[:0]
}

func (r *Registry) Len() int {
	return len(r.order)
}

func (r *Registry) freeze(account *Account, now time.Time) {
	if account.startedAt == nil {
		return
	}
	elapsed := int(now.Sub(*account.startedAt) / time.Second)
	account.ProcessingTime = format.Duration(elapsed)
	account.startedAt = nil
}

// sort orders records by status (processing, success, failed), with ties
// broken by collated username. The order is a pure function of the current
// records, never of insertion or event order.
func (r *Registry) sort() {
	slices.SortStableFunc(r.order, func(a, b *Account) int {
		if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
			return ra - rb
		}
		return r.collator.CompareString(a.Username, b.Username)
	})
}

func statusRank(status Status) int {
	switch status {
	case StatusProcessing:
		return 0
	case StatusSuccess:
		return 1
	default:
		return 2
	}
}

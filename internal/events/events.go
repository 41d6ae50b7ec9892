// Package events defines the wire format shared by the processing backend
// and the status client: a text frame carrying a JSON envelope whose data
// shape depends on the event type.
package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeGeneral        Type = "general"
	TypeAccountProcess Type = "account_process"
	TypeAccountStep    Type = "account_step"
	TypeAccountResult  Type = "account_result"
	TypeProgress       Type = "progress"
	TypeTransaction    Type = "transaction"
	TypeError          Type = "error"
	TypeResultFiles    Type = "result_files"
)

type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelDebug Level = "DEBUG"
)

// Frame is the envelope of one transport frame.
type Frame struct {
	Timestamp string          `json:"timestamp"`
	Level     Level           `json:"level"`
	Source    string          `json:"source,omitempty"`
	Message   string          `json:"message"`
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data"`
}

var ErrMissingType = errors.New("frame has no event type")

// DecodeFrame parses a raw text frame into its envelope. The data payload
// stays raw; callers decode it once they know the type.
func DecodeFrame(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, err
	}
	if frame.Type == "" {
		return Frame{}, ErrMissingType
	}
	return frame, nil
}

// AccountProcess announces that processing of an account began.
type AccountProcess struct {
	Username   string `json:"username"`
	Step       string `json:"step,omitempty"`
	StepNumber int    `json:"step_number,omitempty"`
}

// AccountStep reports the current stage of a processing account.
type AccountStep struct {
	Username   string `json:"username"`
	Step       string `json:"step,omitempty"`
	StepNumber int    `json:"step_number,omitempty"`
}

// AccountResult reports the terminal outcome for an account. Balance and
// deposit fields are present only on success.
type AccountResult struct {
	Username      string           `json:"username"`
	Success       bool             `json:"success"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
	LastDeposit   *decimal.Decimal `json:"last_deposit,omitempty"`
	DepositTime   string           `json:"deposit_time,omitempty"`
	DepositTxCode string           `json:"deposit_txcode,omitempty"`
}

// Transaction reports one transaction from the account history.
type Transaction struct {
	Username          string          `json:"username"`
	TransactionNumber string          `json:"transaction_number"`
	TransactionTime   string          `json:"transaction_time"`
	TransactionType   int             `json:"transaction_type"`
	Amount            decimal.Decimal `json:"amount"`
	BalanceAfter      decimal.Decimal `json:"balance_after"`
	IsLatestDeposit   bool            `json:"is_latest_deposit"`
}

// Progress carries the authoritative global counters.
type Progress struct {
	Total           int     `json:"total"`
	Processed       int     `json:"processed"`
	InProgress      int     `json:"in_progress"`
	SuccessCount    int     `json:"success_count"`
	FailCount       int     `json:"fail_count"`
	SuccessRate     float64 `json:"success_rate"`
	PercentComplete float64 `json:"percent_complete"`
}

// ErrorInfo reports a failed account with its error classification.
type ErrorInfo struct {
	Username  string `json:"username"`
	ErrorCode string `json:"error_code"`
	Details   string `json:"details"`
}

// ResultFiles announces the produced result artifacts.
type ResultFiles struct {
	SuccessFile string `json:"success_file,omitempty"`
	FailFile    string `json:"fail_file,omitempty"`
}

// NewFrame builds an envelope around a typed payload. Marshal errors are
// impossible for the payload types above, so the error is swallowed into
// an empty data object rather than propagated to every emit site.
func NewFrame(eventType Type, level Level, message string, data any) Frame {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("{}")
	}

	return Frame{
		Timestamp: time.Now().Format("15:04:05"),
		Level:     level,
		Message:   message,
		Type:      eventType,
		Data:      raw,
	}
}

package models

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type AccountStatus int

const (
	StatusNotProcessed AccountStatus = iota
	StatusProcessing
	StatusSuccess
	StatusFailed
)

func (s AccountStatus) String() string {
	switch s {
	case StatusProcessing:
		return "Processing"
	case StatusSuccess:
		return "Success"
	case StatusFailed:
		return "Failed"
	default:
		return "Not Processed"
	}
}

// Account is one row of a processing batch on the backend side.
type Account struct {
	Username      string
	Password      string
	Balance       decimal.Decimal
	LastDeposit   decimal.Decimal
	DepositTime   string
	DepositTxCode string
	Status        AccountStatus
	ErrorCode     string
	ErrorDetails  string
}

// LoadAccountsFromExcel reads a batch from the first sheet of an Excel
// file. The header row is skipped; rows without both username and
// password are ignored.
func LoadAccountsFromExcel(filePath string) ([]*Account, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in Excel file")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	accounts := make([]*Account, 0)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 2 || row[0] == "" || row[1] == "" {
			continue
		}

		accounts = append(accounts, &Account{
			Username: row[0],
			Password: row[1],
			Status:   StatusNotProcessed,
		})
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("no valid accounts found in Excel file")
	}

	return accounts, nil
}

// SaveAccountsToExcel writes the accounts matching the requested outcome
// into a timestamped result file under resultsDir and returns the bare
// file name (the identifier announced to clients).
func SaveAccountsToExcel(accounts []*Account, successful bool, resultsDir string) (string, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	headers := []string{
		"Username", "Password", "Balance", "Last Deposit",
		"Deposit Time", "Deposit Transaction", "Status", "Error",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		if err := f.SetCellValue("Sheet1", cell, header); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	wanted := StatusFailed
	filePrefix := "fail"
	if successful {
		wanted = StatusSuccess
		filePrefix = "success"
	}

	rowNum := 2
	for _, account := range accounts {
		if account.Status != wanted {
			continue
		}

		values := []any{
			account.Username,
			account.Password,
			account.Balance.String(),
			account.LastDeposit.String(),
			account.DepositTime,
			account.DepositTxCode,
			account.Status.String(),
			account.ErrorCode,
		}
		for i, value := range values {
			cell := fmt.Sprintf("%c%d", 'A'+i, rowNum)
			if err := f.SetCellValue("Sheet1", cell, value); err != nil {
				return "", fmt.Errorf("failed to write row: %w", err)
			}
		}
		rowNum++
	}

	for i := range headers {
		colName := string(rune('A' + i))
		if err := f.SetColWidth("Sheet1", colName, colName, 18); err != nil {
			return "", fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	fileName := fmt.Sprintf("%s_%s.xlsx", filePrefix, time.Now().Format("20060102_150405"))
	if err := f.SaveAs(filepath.Join(resultsDir, fileName)); err != nil {
		return "", fmt.Errorf("failed to save Excel file: %w", err)
	}

	return fileName, nil
}

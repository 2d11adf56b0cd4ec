// Package store is the caller-side persistence around the checker: the
// accounts file, a SQLite history of runs, and spreadsheet export. The
// orchestrator itself never writes any of this.
package store

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/frd21313123123/auto-reg/pkg/types"
)

// ParseAccountLine parses one accounts-file line. Supported formats:
//
//	email / password / status
//	email / password
//	email:password
//	email<TAB>password
//
// The second and fourth come from pasted exports and are normalized to the
// first on the next save. Returns false for blank or unparseable lines.
func ParseAccountLine(line string) (types.Account, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return types.Account{}, false
	}

	var email, password string
	status := types.StatusNotRegistered

	switch {
	case strings.Contains(line, " / "):
		parts := strings.Split(line, " / ")
		if len(parts) < 2 {
			return types.Account{}, false
		}
		email, password = parts[0], parts[1]
		if len(parts) >= 3 {
			status = strings.TrimSpace(parts[2])
		}
	case strings.Contains(line, ":"):
		parts := strings.SplitN(line, ":", 2)
		email, password = parts[0], parts[1]
	case strings.Contains(line, "\t"):
		parts := strings.SplitN(line, "\t", 2)
		email, password = parts[0], parts[1]
	default:
		return types.Account{}, false
	}

	cred := types.NewCredential(email, password)
	if cred.Email == "" || cred.Password == "" || !strings.Contains(cred.Email, "@") {
		return types.Account{}, false
	}
	return types.Account{Credential: cred, Status: status}, true
}

// LoadAccounts reads the accounts file, skipping blank and malformed lines.
func LoadAccounts(path string) ([]types.Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var accounts []types.Account
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if acc, ok := ParseAccountLine(scanner.Text()); ok {
			accounts = append(accounts, acc)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}
	return accounts, nil
}

// SaveAccounts writes the accounts back in canonical form.
func SaveAccounts(path string, accounts []types.Account) error {
	var sb strings.Builder
	for _, acc := range accounts {
		status := acc.Status
		if status == "" {
			status = types.StatusNotRegistered
		}
		fmt.Fprintf(&sb, "%s / %s / %s\n", acc.Email, acc.Password, status)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to save accounts file: %w", err)
	}
	return nil
}

// ApplyReport folds batch verdicts back into the account list. Only
// terminal negatives change a recorded status; Ok leaves whatever the user
// set (registered, plus) alone.
func ApplyReport(accounts []types.Account, report *types.Report) {
	for _, res := range report.Results {
		if res.AccountID < 0 || res.AccountID >= len(accounts) {
			continue
		}
		switch res.Verdict {
		case types.VerdictBanned:
			accounts[res.AccountID].Status = types.StatusBanned
		case types.VerdictInvalidPassword:
			accounts[res.AccountID].Status = types.StatusInvalidPassword
		}
	}
}

package types

import "time"

// Verdict is the outcome of checking a single account.
type Verdict string

const (
	VerdictOk              Verdict = "ok"
	VerdictBanned          Verdict = "banned"
	VerdictInvalidPassword Verdict = "invalid_password"
	VerdictError           Verdict = "error"
	VerdictSkipped         Verdict = "skipped"
)

// Reason tokens attached to a BanCheckResult. Machine tokens, not sentences.
const (
	ReasonAccessDeactivated    = "access_deactivated"
	ReasonNoBanFound           = "no_ban_found"
	ReasonWrongCredentials     = "wrong_credentials"
	ReasonIMAPLoginFailed      = "imap_login_failed"
	ReasonNetworkError         = "network_error"
	ReasonIMAPConnectionFailed = "imap_connection_failed"
	ReasonSkippedKnownStatus   = "skipped_known_status"
)

// BanCheckResult is the per-account verdict returned by the orchestrator.
type BanCheckResult struct {
	AccountID int     `json:"account_id"`
	Email     string  `json:"email"`
	Verdict   Verdict `json:"verdict"`
	Reason    string  `json:"reason"`
}

// Progress is a throttled snapshot emitted while a batch runs.
type Progress struct {
	Processed    int
	Total        int
	CurrentEmail string
	Banned       int
	Checked      int
}

// Report is the final aggregate of a batch run.
type Report struct {
	RunID           string           `json:"run_id"`
	Checked         int              `json:"checked"`
	Banned          int              `json:"banned"`
	InvalidPassword int              `json:"invalid_password"`
	Skipped         int              `json:"skipped"`
	Errors          int              `json:"errors"`
	Elapsed         time.Duration    `json:"elapsed"`
	Results         []BanCheckResult `json:"results"`
}

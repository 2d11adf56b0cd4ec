package types

import "strings"

// Account status values as persisted in the accounts file.
const (
	StatusNotRegistered   = "not_registered"
	StatusRegistered      = "registered"
	StatusPlus            = "plus"
	StatusBanned          = "banned"
	StatusInvalidPassword = "invalid_password"
)

// Credential is an email/password pair. Fields are trimmed on construction
// because pasted account lists routinely carry stray whitespace.
type Credential struct {
	Email    string
	Password string
}

// NewCredential builds a trimmed credential.
func NewCredential(email, password string) Credential {
	return Credential{
		Email:    strings.TrimSpace(email),
		Password: strings.TrimSpace(password),
	}
}

// Domain returns the part of the email after the last "@".
func (c Credential) Domain() string {
	if i := strings.LastIndex(c.Email, "@"); i >= 0 {
		return strings.ToLower(c.Email[i+1:])
	}
	return ""
}

// Account is a credential plus the status recorded from a previous run.
type Account struct {
	Credential
	Status string
}

// TerminalNegative reports whether the recorded status means the account is
// already known to be dead, so a fresh check would be wasted work.
func (a Account) TerminalNegative() bool {
	return a.Status == StatusBanned || a.Status == StatusInvalidPassword
}

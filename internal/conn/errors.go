package conn

import (
	"errors"
	"fmt"
)

// FailKind classifies why a connect cascade failed.
type FailKind int

const (
	// KindAuth: at least one protocol was reached and rejected the
	// credentials, and nothing else succeeded.
	KindAuth FailKind = iota

	// KindUnavailable: every candidate was unreachable; nothing got far
	// enough to judge the credentials.
	KindUnavailable
)

// ConnectError is the distinguishable failure surfaced when no adapter
// could produce a working state. Reason is a short machine token.
type ConnectError struct {
	Kind   FailKind
	Reason string
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connect failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("connect failed (%s)", e.Reason)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsAuthFailure reports whether err is a connect failure caused by
// rejected credentials.
func IsAuthFailure(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce) && ce.Kind == KindAuth
}

// FailReason extracts the machine reason token, or a generic one.
func FailReason(err error) string {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return "connect_failed"
}

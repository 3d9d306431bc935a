package booking

import (
	"errors"
	"fmt"
	"strings"
)

// Code is the stable machine-readable reason attached to every rejection.
type Code string

const (
	CodeInvalidRequest     Code = "invalid_request"
	CodeInvalidProvider    Code = "invalid_provider"
	CodePastDate           Code = "past_date"
	CodeSlotUnavailable    Code = "slot_unavailable"
	CodeNotFound           Code = "not_found"
	CodeNotAllowed         Code = "not_allowed"
	CodeAlreadyCanceled    Code = "already_canceled"
	CodeStorageUnavailable Code = "storage_unavailable"
)

// Error is a tagged business rejection. It is an ordinary return value, not
// a fault: callers switch on Code. Fields is set only for invalid_request.
type Error struct {
	Code    Code
	Message string
	Fields  []string
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func reject(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// AsError unwraps err into a booking rejection, if it is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Sentinels returned by Ledger implementations. The orchestrator maps them
// onto coded rejections; everything else from the ledger is treated as a
// transient storage fault.
var (
	ErrLedgerNotFound        = errors.New("appointment not found")
	ErrLedgerAlreadyCanceled = errors.New("appointment already canceled")
)

package store

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStatusSource loads the authoritative status of a customer, e.g. from a
// database. Implementations return an *Error with RetCNotFound for unknown
// customers.
type IStatusSource interface {
	// LoadUserStatus returns a freshly built status. The caller owns it.
	LoadUserStatus(ctx context.Context, customerID uint32) (*message.UserStatus, error)
}

// IStatusStore answers status requests, honoring the cache operation of the
// request. The returned status is owned by the caller.
type IStatusStore interface {
	// GetUserStatus returns the status of req.CustomerID according to req.Operation.
	GetUserStatus(ctx context.Context, req *message.UserStatusRequest) (*message.UserStatus, error)
	// Stats returns counters describing the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	Stats() Stats
	// Close releases every cached entry and the underlying source.
	Close() error
}

// Stats describes the state of a status store.
type Stats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Loads     uint64
	Evictions uint64
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StatusStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first *Error in err's chain, RetCSuccess for
// nil and RetCInternalError for any other error.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCNotFound                            // 4: The customer is unknown.
	RetCClosed                              // 5: The store was closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStaleState is the consistency error: the credit or invoice changed between
	// the time it was read and the time it was written, or the database aborted the
	// transaction to avoid a lost update. Nothing was written; the caller may retry.
	ErrStaleState = errors.New("credit state changed, please retry")

	// ErrDuplicateNumber is returned by CreditRepository.Create when the credit number
	// is already taken.
	ErrDuplicateNumber = errors.New("credit number already exists")

	// ErrCreditNumberExhausted is returned when no free credit number was found within
	// the bounded number of attempts.
	ErrCreditNumberExhausted = errors.New("could not allocate a unique credit number")
)

// ValidationError lists every precondition that failed. No mutation happened.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

type problems []string

func (p *problems) add(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Messages: p}
}

// OperationError wraps an infrastructure failure. The whole transaction was rolled back.
type OperationError struct {
	// Op is the operation that failed, e.g. "apply credit".
	Op string

	// Err is the underlying cause, kept for operator logs.
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// wrapOp leaves validation and consistency errors untouched and wraps everything else.
func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) || errors.Is(err, ErrStaleState) {
		return err
	}
	var oerr *OperationError
	if errors.As(err, &oerr) {
		return err
	}
	return &OperationError{Op: op, Err: err}
}

// IsValidation reports whether err carries a *ValidationError and returns its messages.
func IsValidation(err error) ([]string, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Messages, true
	}
	return nil, false
}

package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/joescharf/board/internal/store"
)

// ErrNotFound matches any operation that targets a missing issue, comment, or user.
var ErrNotFound = store.ErrNotFound

// ErrCancelled is returned by Pending.Confirm after Cancel.
var ErrCancelled = errors.New("cancelled")

// ErrConfirmationRequired is returned at the transport boundary when a
// destructive request arrives without an explicit confirm signal.
var ErrConfirmationRequired = errors.New("confirmation required")

// ValidationError reports bad input for a single field. It is never persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors collects field errors from a form that is checked as a whole.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.As find the individual field errors.
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// Field returns the message for one field, or "".
func (v ValidationErrors) Field(name string) string {
	for _, e := range v {
		if e.Field == name {
			return e.Message
		}
	}
	return ""
}

// err returns nil, the sole error, or the whole collection.
func (v ValidationErrors) err() error {
	switch len(v) {
	case 0:
		return nil
	case 1:
		return v[0]
	default:
		return v
	}
}

// TransportError wraps a storage or network failure during an operation.
// The store is left in its prior state; retrying is up to the caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a field validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// wrapStoreErr passes through domain errors and wraps everything else.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	switch {
	case errors.Is(err, ErrNotFound), IsValidation(err), errors.As(err, &te):
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// Pending is a destructive operation awaiting an explicit confirm or cancel.
type Pending struct {
	prompt string
	run    func(ctx context.Context) error

	mu        sync.Mutex
	cancelled bool
}

// NewPending wraps run as a destructive operation awaiting confirmation.
func NewPending(prompt string, run func(ctx context.Context) error) *Pending {
	return &Pending{prompt: prompt, run: run}
}

// Prompt is the question shown in the confirmation dialog.
func (p *Pending) Prompt() string { return p.prompt }

// Confirm executes the operation. A second Confirm targets an already
// deleted entity and returns ErrNotFound.
func (p *Pending) Confirm(ctx context.Context) error {
	p.mu.Lock()
	cancelled := p.cancelled
	p.mu.Unlock()
	if cancelled {
		return ErrCancelled
	}
	return p.run(ctx)
}

// Cancel discards the operation; state is left untouched.
func (p *Pending) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
}

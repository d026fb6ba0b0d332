package storage

import "fmt"

// Error wraps a failure encountered while talking to the trade/bar store
// with the operation that failed, so callers up the stack (and log lines)
// always know where in the storage layer things went wrong.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches operation context to err. Returns nil if err is nil.
func Wrap(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Operation: operation, Err: err}
}

// NotFoundError reports that a requested resource does not exist —
// e.g. no trades stored yet for a (pair, source), or no bars for a
// (bar_type, pair).
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("%s not found: %v", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// NewNotFoundError builds a NotFoundError for a resource with no
// distinguishing ID.
func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

// NewNotFoundErrorWithID builds a NotFoundError naming the missing ID.
func NewNotFoundErrorWithID(resource string, id interface{}) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// InvalidIdentifierError reports a bar-type or pair label that fails the
// identifier-safety pattern required before it is interpolated into a
// table name (§6's injection guard).
type InvalidIdentifierError struct {
	Kind  string // "bar_type" or "pair"
	Value string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("storage: invalid %s %q", e.Kind, e.Value)
}

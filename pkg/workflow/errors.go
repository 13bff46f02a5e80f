package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrValidation          = errors.New("validation failed")
	ErrIncompleteDocuments = errors.New("incomplete documents")
	ErrNotFound            = errors.New("submission not found")
	ErrStorage             = errors.New("storage failure")
)

// TransitionError reports a status precondition that did not hold.
type TransitionError struct {
	Action Action
	From   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s to a submission in status %s", e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IncompleteDocumentsError lists the document kinds still without a link.
type IncompleteDocumentsError struct {
	Have    int
	Need    int
	Missing []string
}

func (e *IncompleteDocumentsError) Error() string {
	return fmt.Sprintf("%d of %d required documents present; missing: %s", e.Have, e.Need, strings.Join(e.Missing, ", "))
}

func (e *IncompleteDocumentsError) Is(target error) bool { return target == ErrIncompleteDocuments }

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storage(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnauthorized}, args...)...)
}

// Class returns a short label for err, used in metrics and logs.
func Class(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrIncompleteDocuments):
		return "incomplete_documents"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "storage"
	}
}

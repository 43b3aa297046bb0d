package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

var (
	// ErrElementNotFound means the target did not resolve before the wait
	// timed out.
	ErrElementNotFound = errors.New("element not found")
	// ErrTypeMismatch means the resolved element does not support the action.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownActionType is returned for types outside the recognized set.
	ErrUnknownActionType = errors.New("unknown action type")
	// ErrBatchAborted is matched by every BatchError.
	ErrBatchAborted = errors.New("batch aborted")
	// ErrVerificationFailed is returned by verify actions whose check fails.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrInvalidData is returned when a descriptor's data bag is malformed.
	ErrInvalidData = errors.New("invalid action data")
)

// ActionError binds a failure to the action that caused it.
type ActionError struct {
	ActionID string
	Type     schemas.ActionType
	Err      error
}

func (e *ActionError) Error() string {
	if e.ActionID == "" {
		return fmt.Sprintf("%s action failed: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("%s action %q failed: %v", e.Type, e.ActionID, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Wrap binds err to a. It returns nil for a nil err and leaves errors that
// are already bound to an action alone.
func Wrap(a Action, err error) error {
	if err == nil {
		return nil
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return err
	}
	h := a.Meta()
	return &ActionError{ActionID: h.ID, Type: h.Type, Err: err}
}

// BatchError reports the action a queue run stopped at. It matches both
// ErrBatchAborted and the underlying cause.
type BatchError struct {
	// Position is the zero-based position of the failing action.
	Position int
	ActionID string
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch aborted at action %d (%s): %v", e.Position, e.ActionID, e.Err)
}

func (e *BatchError) Unwrap() []error { return []error{ErrBatchAborted, e.Err} }

// Failure kinds reported to callers.
const (
	KindElementNotFound    = "ElementNotFound"
	KindTypeMismatch       = "TypeMismatch"
	KindUnknownActionType  = "UnknownActionType"
	KindInaccessibleFrame  = "InaccessibleFrame"
	KindVerificationFailed = "VerificationFailed"
	KindInvalidData        = "InvalidData"
	KindCancelled          = "Cancelled"
	KindInternal           = "Internal"
)

// KindOf classifies err into one of the failure kinds.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrUnknownActionType):
		return KindUnknownActionType
	case errors.Is(err, ErrInvalidData):
		return KindInvalidData
	case errors.Is(err, dom.ErrInaccessibleFrame):
		return KindInaccessibleFrame
	case errors.Is(err, ErrElementNotFound):
		return KindElementNotFound
	case errors.Is(err, ErrTypeMismatch):
		return KindTypeMismatch
	case errors.Is(err, ErrVerificationFailed):
		return KindVerificationFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	}
	return KindInternal
}

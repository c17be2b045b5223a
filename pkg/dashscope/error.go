package dashscope

import (
	"errors"
	"fmt"
)

// Error codes produced by this package. TaskFailed and SessionFailed carry
// the upstream error message verbatim.
const (
	ErrCodeConnectionFailed  = "ConnectionFailed"
	ErrCodeTaskFailed        = "TaskFailed"
	ErrCodeSessionFailed     = "SessionFailed"
	ErrCodeProtocolViolation = "ProtocolViolation"
)

// Sentinel errors for state and timeout conditions.
var (
	// ErrTaskStartTimeout is returned when the upstream does not send
	// task-started within the configured start timeout.
	ErrTaskStartTimeout = errors.New("dashscope: timed out waiting for task-started")

	// ErrSessionConfigTimeout is returned when the upstream does not send
	// session.created and session.updated within the configured timeout.
	ErrSessionConfigTimeout = errors.New("dashscope: timed out waiting for session configuration")

	// ErrInvalidState is returned when an operation is called outside the
	// protocol state it is valid in, e.g. SendAudio before the task has
	// started or after it is finishing. Audio is never dropped silently.
	ErrInvalidState = errors.New("dashscope: operation invalid in current state")

	// ErrClosed is returned when an operation is attempted on a closed link.
	ErrClosed = errors.New("dashscope: link closed")
)

// Error represents an upstream protocol or transport error.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	TaskID     string `json:"task_id,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *Error) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("dashscope: %s - %s (task_id=%s)", e.Code, e.Message, e.TaskID)
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("dashscope: %s - %s (http_status=%d)", e.Code, e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("dashscope: %s - %s", e.Code, e.Message)
}

// IsProtocolViolation reports whether the error is an unexpected event
// ordering from the upstream.
func (e *Error) IsProtocolViolation() bool {
	return e.Code == ErrCodeProtocolViolation
}

// AsError attempts to cast an error to *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

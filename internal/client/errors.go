package client

import "fmt"

// BackendError means the backend answered with a non-success status and a
// structured {"error": ...} payload. Message is shown to the user verbatim.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Message)
}

// UserMessage returns the backend's message for direct display.
func (e *BackendError) UserMessage() string { return e.Message }

// TransportError means the request never produced a usable response: network
// failure, timeout, or an unparsable body. The user sees a generic message;
// the wrapped error is for logs.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

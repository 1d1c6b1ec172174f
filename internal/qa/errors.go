package qa

import (
	"fmt"
	"net/http"
)

// RemoteServiceError describes a failed call to the QA service: a transport
// failure, a non-2xx status, or a malformed body.
type RemoteServiceError struct {
	Op         string
	StatusCode int
	Detail     string
	Cause      error

	network bool
}

func (e *RemoteServiceError) Error() string {
	msg := "qa " + e.Op + " failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RemoteServiceError) Unwrap() error { return e.Cause }

// Temporary reports whether the failure happened at the network level and
// the request may be retried. HTTP status errors are never temporary.
func (e *RemoteServiceError) Temporary() bool { return e.network }

package chat

import (
	"context"
	"errors"

	"github.com/bitop-dev/chat/internal/delta"
)

// TransportError reports a failure to open or read a completion stream. It is
// fatal to the turn.
type TransportError struct {
	Provider  string
	Code      string
	Status    int
	Message   string
	Retryable bool
	Cause     error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	if e.Provider != "" && e.Message != "" {
		return e.Provider + ": " + e.Message
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Provider != "" {
		return e.Provider + ": error"
	}
	return "transport error"
}

func (e *TransportError) Unwrap() error { return e.Cause }

func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

func IsRateLimited(err error) bool {
	var e *TransportError
	return errors.As(err, &e) && (e.Status == 429 || e.Code == "rate_limited")
}

func IsAuth(err error) bool {
	var e *TransportError
	return errors.As(err, &e) && (e.Status == 401 || e.Status == 403 || e.Code == "unauthorized")
}

func IsTimeout(err error) bool {
	var e *TransportError
	if errors.As(err, &e) && e.Code == "timeout" {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func IsCanceled(err error) bool {
	var e *TransportError
	if errors.As(err, &e) && e.Code == "canceled" {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// asTransportError normalizes any stream failure into a *TransportError.
func asTransportError(err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	var se *delta.StreamError
	if errors.As(err, &se) {
		code := se.Code
		if code == "" {
			code = "stream_error"
		}
		return &TransportError{Code: code, Message: se.Message, Cause: err}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &TransportError{Code: "canceled", Message: err.Error(), Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Code: "timeout", Message: err.Error(), Retryable: true, Cause: err}
	}
	return &TransportError{Code: "network_error", Message: err.Error(), Cause: err}
}

package core

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when an AI request is attempted without
// credentials or with AI disabled.
var ErrNotConfigured = errors.New("AI not configured")

// ErrTargetNotFound is returned when a short-id prefix matches no task, or
// matches more than one.
var ErrTargetNotFound = errors.New("task not found")

// excerptLen bounds the diagnostic text carried by errors.
const excerptLen = 200

// HTTPStatusError reports a non-2xx response from the model endpoint.
type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("AI HTTP %d: %s", e.Code, truncateBytes(e.Body, excerptLen))
}

// TransportError covers timeouts, DNS failures and dropped connections.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("AI transport error: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// ReadError reports a response body that could not be read or whose
// envelope lacked the expected message content.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("AI response read failed: %v", e.Err) }

func (e *ReadError) Unwrap() error { return e.Err }

// ParseError reports model output that is not valid JSON or does not match
// the action schema. Excerpt holds the first 200 bytes of the raw output.
type ParseError struct {
	Reason  string
	Excerpt string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("AI output not valid JSON (%s): %s", e.Reason, e.Excerpt)
}

func newParseError(reason, content string) *ParseError {
	return &ParseError{Reason: reason, Excerpt: truncateBytes(content, excerptLen)}
}

// ErrorText renders an error as the toast shown to the user.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotConfigured) {
		return ErrNotConfigured.Error()
	}
	var (
		httpErr  *HTTPStatusError
		tErr     *TransportError
		rErr     *ReadError
		parseErr *ParseError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Error()
	case errors.As(err, &tErr):
		return tErr.Error()
	case errors.As(err, &rErr):
		return rErr.Error()
	case errors.As(err, &parseErr):
		return parseErr.Error()
	}
	return "AI error: " + err.Error()
}

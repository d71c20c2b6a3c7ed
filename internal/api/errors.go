package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// maxMessageBytes caps how much of an error body is surfaced to the user
const maxMessageBytes = 512

// ErrNetwork marks failures where no HTTP response was received
var ErrNetwork = errors.New("network error")

// Error is returned for every failed request. Message is safe to show to
// the user as-is.
type Error struct {
	Status    int // 0 when the request never got a response
	Message   string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the user-facing text for err
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// IsStatus reports whether err is an API error with the given HTTP status
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// serverMessage extracts the message the backend put in an error body.
// Plain text bodies are used verbatim, JSON bodies contribute their
// "message" or "error" field. A body that only looks like JSON is plain text.
func serverMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text != "" {
		switch text[0] {
		case '{':
			var payload struct {
				Message string `json:"message"`
				Error   string `json:"error"`
			}
			if json.Unmarshal(body, &payload) != nil {
				return truncate(text)
			}
			if payload.Message != "" {
				return truncate(payload.Message)
			}
			if payload.Error != "" {
				return truncate(payload.Error)
			}
		case '"':
			var s string
			if json.Unmarshal(body, &s) != nil {
				return truncate(text)
			}
			if s != "" {
				return truncate(s)
			}
		default:
			return truncate(text)
		}
	}
	return fmt.Sprintf("request failed: %d %s", status, http.StatusText(status))
}

// truncate cuts s to at most maxMessageBytes without splitting a rune
func truncate(s string) string {
	if len(s) <= maxMessageBytes {
		return s
	}
	cut := maxMessageBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// networkError wraps a transport failure so it matches ErrNetwork without
// repeating the sentinel's text in Error
type networkError struct {
	err error
}

func (e networkError) Error() string { return e.err.Error() }

func (e networkError) Unwrap() []error { return []error{ErrNetwork, e.err} }

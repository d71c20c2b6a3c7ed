// Package service wraps the backend endpoints for projects and tasks. The
// identity header is attached by the api client, not here.
package service

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

// Requester is the subset of *api.Client the access layers use
type Requester interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

var dateOnly = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NormalizeDueDate turns a form value into the backend's date-time format.
// A bare YYYY-MM-DD date becomes midnight, an empty value becomes nil and
// anything else is sent unchanged.
func NormalizeDueDate(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if dateOnly.MatchString(value) {
		value += "T00:00:00"
	}
	return &value
}

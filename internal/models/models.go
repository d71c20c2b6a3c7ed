package models

import (
	"strings"
	"time"
)

// Project represents a project owned by the signed-in user
type Project struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	CreatedAt      string  `json:"createdAt,omitempty"` // server local time, kept opaque
	TotalTasks     int     `json:"totalTasks"`
	CompletedTasks int     `json:"completedTasks"`
	Progress       float64 `json:"progress"` // computed by the server, display only
}

// Task represents a single task inside a project
type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"dueDate"` // nil when no due date is set
	Completed   bool    `json:"completed"`
}

// Due returns the date part of the due date, or "" when unset
func (t Task) Due() string {
	if t.DueDate == nil {
		return ""
	}
	date, _, _ := strings.Cut(*t.DueDate, "T")
	return date
}

// TaskInput is the payload for creating or updating a task
type TaskInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"dueDate"`
}

// Session is the identity of the signed-in user
type Session struct {
	UserID    int64
	Token     string
	Email     string
	ExpiresAt time.Time // zero when the token carries no expiry
}

// Authenticated reports whether the session holds a usable identity at now
func (s Session) Authenticated(now time.Time) bool {
	if s.UserID == 0 {
		return false
	}
	if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
		return false
	}
	return true
}

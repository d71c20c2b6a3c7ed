package viewmodel

import (
	"errors"
	"math"
	"strings"

	"github.com/tgienger/taskboard/internal/models"
)

var (
	ErrTitleRequired  = errors.New("title is required")
	ErrDuplicateTitle = errors.New("title already exists")
)

// StatusFilter narrows the task list by completion
type StatusFilter int

const (
	StatusAll StatusFilter = iota
	StatusCompleted
	StatusPending
)

func (f StatusFilter) String() string {
	switch f {
	case StatusCompleted:
		return "completed"
	case StatusPending:
		return "pending"
	default:
		return "all"
	}
}

// Next cycles all -> completed -> pending -> all
func (f StatusFilter) Next() StatusFilter {
	return (f + 1) % 3
}

// Matches reports whether a task passes the filter
func (f StatusFilter) Matches(t models.Task) bool {
	switch f {
	case StatusCompleted:
		return t.Completed
	case StatusPending:
		return !t.Completed
	default:
		return true
	}
}

// Completed returns the value for a server search, nil meaning any
func (f StatusFilter) Completed() *bool {
	var v bool
	switch f {
	case StatusCompleted:
		v = true
	case StatusPending:
		v = false
	default:
		return nil
	}
	return &v
}

// ParseStatusFilter accepts "all", "completed" or "pending"
func ParseStatusFilter(s string) (StatusFilter, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return StatusAll, true
	case "completed", "done":
		return StatusCompleted, true
	case "pending", "open":
		return StatusPending, true
	}
	return StatusAll, false
}

// Progress is the rounded percentage of completed tasks, 0 for no tasks
func Progress(tasks []models.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Completed {
			done++
		}
	}
	return int(math.Round(float64(done) * 100 / float64(len(tasks))))
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// FilterTasks keeps tasks whose title contains search (case-insensitive) and
// whose status matches. Input order is preserved.
func FilterTasks(tasks []models.Task, search string, status StatusFilter) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if containsFold(t.Title, search) && status.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// FilterProjects keeps projects whose title contains search (case-insensitive)
func FilterProjects(projects []models.Project, search string) []models.Project {
	out := make([]models.Project, 0, len(projects))
	for _, p := range projects {
		if containsFold(p.Title, search) {
			out = append(out, p)
		}
	}
	return out
}

// ValidateNewTitle trims title and checks it against the titles already in
// the collection, ignoring case. It returns the trimmed title.
func ValidateNewTitle(title string, existing []string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrTitleRequired
	}
	for _, e := range existing {
		if strings.EqualFold(strings.TrimSpace(e), title) {
			return "", ErrDuplicateTitle
		}
	}
	return title, nil
}

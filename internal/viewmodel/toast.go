package viewmodel

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultToastDuration is how long a toast stays up when not configured
const DefaultToastDuration = 2500 * time.Millisecond

// ToastKind selects the toast styling
type ToastKind int

const (
	ToastSuccess ToastKind = iota
	ToastError
)

// Toast is a single transient notification. Showing a new message replaces
// the current one and restarts the timer.
type Toast struct {
	Message  string
	Kind     ToastKind
	visible  bool
	gen      int
	duration time.Duration
}

// ToastExpiredMsg hides a toast if nothing newer was shown since
type ToastExpiredMsg struct {
	toast *Toast
	gen   int
}

// Visible reports whether the toast should be drawn
func (t *Toast) Visible() bool { return t.visible }

// Show displays message and returns the command that dismisses it
func (t *Toast) Show(kind ToastKind, message string) tea.Cmd {
	t.gen++
	t.Message = message
	t.Kind = kind
	t.visible = true

	d := t.duration
	if d <= 0 {
		d = DefaultToastDuration
	}
	gen := t.gen
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ToastExpiredMsg{toast: t, gen: gen}
	})
}

// Dismiss hides the toast now
func (t *Toast) Dismiss() {
	t.gen++
	t.visible = false
	t.Message = ""
}

// Update handles expiry messages addressed to this toast
func (t *Toast) Update(msg tea.Msg) bool {
	m, ok := msg.(ToastExpiredMsg)
	if !ok || m.toast != t {
		return false
	}
	if m.gen == t.gen {
		t.visible = false
		t.Message = ""
	}
	return true
}
